package task

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummary_RenderExactLayout(t *testing.T) {
	s := Summary{TaskName: "Run2018D", OutDir: "/pnfs/out", NumJobs: 12, Program: "hadd"}
	want := "NTuple conversion process for Run2018D summary\n" +
		"\n" +
		"Task name: Run2018D\n" +
		"Output dir: /pnfs/out\n" +
		"Input filelists in : filelists/input*.txt\n" +
		"Slurm jobs template: slurm_jobscript.sh\n" +
		"Number of jobs: 12\n" +
		"Program to run: hadd\n"
	if diff := cmp.Diff(want, s.Render()); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}

	s.Program = ""
	assert.NotContains(t, s.Render(), KeyProgram)
}

func TestSummary_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), SummaryFile)
	in := Summary{TaskName: "T", OutDir: "/out/dir", NumJobs: 3}
	require.NoError(t, WriteSummary(path, in))

	out, err := ReadSummary(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestParseSummary_SplitsOnFirstSeparator(t *testing.T) {
	s, err := ParseSummary([]byte("Task name: T\nOutput dir: root://host//a: b\nSomething else: x\nNumber of jobs: 4\n"))
	require.NoError(t, err)
	assert.Equal(t, "root://host//a: b", s.OutDir)
	assert.Equal(t, 4, s.NumJobs)
}

func TestReadSummary_Errors(t *testing.T) {
	_, err := ReadSummary(filepath.Join(t.TempDir(), "missing.txt"))
	assert.True(t, errors.Is(err, ErrNoSummary))

	path := filepath.Join(t.TempDir(), SummaryFile)
	require.NoError(t, os.WriteFile(path, []byte("Number of jobs: many\n"), 0644))
	_, err = ReadSummary(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("Number of jobs: 2\n"), 0644))
	_, err = ReadSummary(path)
	assert.True(t, errors.Is(err, ErrNoSummary))
}

func TestRewriteDirectives(t *testing.T) {
	script := []byte("#!/bin/bash\n#SBATCH --partition=standard\n#SBATCH --time=12:00:00\n#SBATCH --mem=3000M\n")

	assert.Equal(t, script, RewriteDirectives(script, "standard", "12:00:00"))

	got := string(RewriteDirectives(script, "short", "01:00:00"))
	assert.Contains(t, got, "#SBATCH --partition=short\n")
	assert.Contains(t, got, "#SBATCH --time=01:00:00\n")
	assert.Contains(t, got, "#SBATCH --mem=3000M\n")

	got = string(RewriteDirectives(script, "", "02:00:00"))
	assert.Contains(t, got, "#SBATCH --partition=standard\n")
	indented := []byte("  #SBATCH --partition=standard\n\t#SBATCH --time=24:00:00 # long\n#SBATCH --partition=standard2\n")
	got = string(RewriteDirectives(indented, "short", "01:00:00"))
	assert.Equal(t, "  #SBATCH --partition=short\n\t#SBATCH --time=01:00:00 # long\n#SBATCH --partition=standard2\n", got)
}

func TestInstallJobScript(t *testing.T) {
	dir := t.TempDir()
	template := filepath.Join(dir, "template.sh")
	require.NoError(t, os.WriteFile(template, []byte("#SBATCH --partition=standard\n#SBATCH --time=12:00:00\n"), 0755))

	l := NewLayout(dir, "T")
	require.NoError(t, os.MkdirAll(l.Dir, 0755))
	require.NoError(t, l.InstallJobScript(template, "long", "12:00:00"))

	data, err := os.ReadFile(l.JobScript())
	require.NoError(t, err)
	assert.Equal(t, "#SBATCH --partition=long\n#SBATCH --time=12:00:00\n", string(data))

	info, err := os.Stat(l.JobScript())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())

	assert.Error(t, l.InstallJobScript("", "long", ""))
}

func TestLayout_ResetAndInputLists(t *testing.T) {
	l := NewLayout(t.TempDir(), "T")
	require.NoError(t, l.ResetFileLists())

	for _, name := range []string{"input_run2.txt", "input_run10.txt", "stale.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(l.FileLists(), name), nil, 0644))
	}
	lists, err := l.InputLists()
	require.NoError(t, err)
	assert.Equal(t, []string{"input_run10.txt", "input_run2.txt"}, lists)

	require.NoError(t, l.ResetFileLists())
	entries, err := os.ReadDir(l.FileLists())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLayout_RemoveMergeLists(t *testing.T) {
	l := NewLayout(t.TempDir(), "T")
	require.NoError(t, l.RemoveMergeLists())

	require.NoError(t, l.ResetFileLists())
	for _, name := range []string{"merging_1", "merging_job_list.txt", "input_run1.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(l.FileLists(), name), nil, 0644))
	}
	require.NoError(t, l.RemoveMergeLists())

	lists, err := l.InputLists()
	require.NoError(t, err)
	assert.Equal(t, []string{"input_run1.txt"}, lists)
	assert.NoFileExists(t, l.MergeList(1))
}

func TestLayout_CopyCertification(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "Cert_Golden.json")
	require.NoError(t, os.WriteFile(src, []byte(`{"1": [[1, 2]]}`), 0644))

	l := NewLayout(dir, "T")
	require.NoError(t, os.MkdirAll(l.Dir, 0755))
	dst, err := l.CopyCertification(src)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(l.Dir, "Cert_Golden.json"), dst)
	assert.FileExists(t, dst)
}

func TestReadWriteLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.sh")
	require.NoError(t, WriteLines(path, []string{"a", "b"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", string(data))

	lines, err := ReadLines(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, lines)
}
