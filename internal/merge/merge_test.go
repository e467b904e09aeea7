package merge

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ntuplesub/internal/config"
	"ntuplesub/internal/task"
)

var psiRemap = []config.PrefixRemap{{From: "/pnfs/psi.ch/cms/trivcat/", To: "root://cms-xrd-global.cern.ch//"}}

func TestRemap(t *testing.T) {
	assert.Equal(t, "root://cms-xrd-global.cern.ch//store/user/me/a.root",
		Remap("/pnfs/psi.ch/cms/trivcat/store/user/me/a.root", psiRemap))
	assert.Equal(t, "/eos/a.root", Remap("/eos/a.root", psiRemap))
	assert.Equal(t, "/x/a.root", Remap("/x/a.root", nil))
}

func TestChunk(t *testing.T) {
	files := make([]string, 23)
	for i := range files {
		files[i] = fmt.Sprintf("f%02d", i)
	}
	groups := Chunk(files, 10)
	require.Len(t, groups, 3)
	assert.Len(t, groups[0], 10)
	assert.Len(t, groups[2], 3)
	assert.Equal(t, "f22", groups[2][2])

	assert.Empty(t, Chunk(nil, 10))
	assert.Len(t, Chunk(files[:3], 0), 3)
}

func setup(t *testing.T, outputs ...string) (task.Layout, task.Summary) {
	t.Helper()
	root := t.TempDir()
	layout := task.NewLayout(filepath.Join(root, "work"), "T")
	summary := task.Summary{TaskName: "T", OutDir: filepath.Join(root, "out"), NumJobs: len(outputs)}
	outDir := task.OutputDir(summary.OutDir, "T")
	require.NoError(t, os.MkdirAll(filepath.Join(outDir, task.MergedSubdir), 0755))
	for _, o := range outputs {
		require.NoError(t, os.WriteFile(filepath.Join(outDir, o), nil, 0644))
	}
	return layout, summary
}

func opts() Options {
	return Options{FilesPerJob: 2, Program: "hadd", SubmitBinary: "sbatch", LogDir: "/logs"}
}

func TestPrepare_StageOne(t *testing.T) {
	layout, summary := setup(t, "T_0001.root", "T_0002.root", "T_0003.root", "summary.txt")

	plan, err := Prepare(layout, summary, opts())
	require.NoError(t, err)

	assert.Equal(t, 3, plan.Files)
	require.Len(t, plan.Lines, 2)
	assert.Equal(t, []string{layout.MergeList(1), layout.MergeList(2)}, plan.Lists)

	first, err := task.ReadLines(layout.MergeList(1))
	require.NoError(t, err)
	outDir := task.OutputDir(summary.OutDir, "T")
	assert.Equal(t, []string{filepath.Join(outDir, "T_0001.root"), filepath.Join(outDir, "T_0002.root")}, first)

	assert.True(t, strings.HasPrefix(plan.Lines[1], "sbatch --job-name=T_MERGING_0002 "))
	assert.Contains(t, plan.Lines[1], " "+layout.MergeList(2)+" "+outDir+" hadd --hadd")

	names, err := task.ReadLines(layout.MergeJobList())
	require.NoError(t, err)
	assert.Equal(t, []string{"merging_1", "merging_2"}, names)

	all, err := task.ReadLines(layout.MergeAllJobs())
	require.NoError(t, err)
	assert.Equal(t, plan.Lines, all)

	test, err := task.ReadLines(layout.MergeTestJob())
	require.NoError(t, err)
	require.Len(t, test, 1)
	assert.Contains(t, test[0], "T_MERGING_test")
}

func TestPrepare_StepTwo(t *testing.T) {
	layout, summary := setup(t, "T_0001.root")
	mergedDir := filepath.Join(task.OutputDir(summary.OutDir, "T"), task.MergedSubdir)
	for _, name := range []string{"merged_0001.root", "merged_0002.root", "other.root"} {
		require.NoError(t, os.WriteFile(filepath.Join(mergedDir, name), nil, 0644))
	}
	require.NoError(t, layout.ResetFileLists())
	stale := layout.MergeList(9)
	require.NoError(t, os.WriteFile(stale, nil, 0644))

	o := opts()
	o.StepTwo = true
	o.FilesPerJob = 10
	plan, err := Prepare(layout, summary, o)
	require.NoError(t, err)

	assert.Equal(t, mergedDir, plan.OutputDir)
	assert.Equal(t, 2, plan.Files)
	require.Len(t, plan.Lines, 1)
	assert.Contains(t, plan.Lines[0], " "+mergedDir+" hadd --hadd")
	assert.NoFileExists(t, stale)
}

func TestPrepare_NoInputs(t *testing.T) {
	layout, summary := setup(t)
	_, err := Prepare(layout, summary, opts())
	assert.True(t, errors.Is(err, ErrNoInputs))
}
