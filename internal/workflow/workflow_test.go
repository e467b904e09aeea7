package workflow

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ntuplesub/internal/config"
	"ntuplesub/internal/ledger"
	"ntuplesub/internal/proxy"
	"ntuplesub/internal/runner"
	"ntuplesub/internal/task"
	"ntuplesub/internal/ui"
)

type fixture struct {
	root string
	task *config.Task
	fake *runner.Fake
	out  *bytes.Buffer
	wf   *Workflow
}

func newFixture(t *testing.T, answer ui.Answer) *fixture {
	t.Helper()
	root := t.TempDir()

	cert := filepath.Join(root, "Cert_Golden.json")
	require.NoError(t, os.WriteFile(cert, []byte(`{"2": [[1, 5]], "1": [[1, 9]]}`), 0644))
	template := filepath.Join(root, "slurm_template.sh")
	require.NoError(t, os.WriteFile(template, []byte("#!/bin/bash\n#SBATCH --partition=standard\n#SBATCH --time=12:00:00\n"), 0755))

	tk := &config.Task{
		TaskName:     "T",
		OutDir:       filepath.Join(root, "out"),
		Cert:         cert,
		JobTemplate:  template,
		CMSSW:        "/cmssw",
		DataTier:     "MINIAOD",
		Conditions:   "GT",
		CMSRunScript: "run_cfg.py",
		Sample:       config.SampleList{"/A"},
		BackupSample: config.SampleGroups{{"/B"}},
	}

	fake := runner.NewFake().
		OnContains("dataset=/A run=1", "/store/a.root\n", 0).
		OnContains("dataset=/B run=2", "/store/b.root\n", 0).
		OnBinary("voms-proxy-info", "5000\n", 0).
		OnBinary("sh", "Submitted batch job 5\n", 0)

	settings := config.DefaultSettings()
	settings.Scheduler.LogDir = "/logs"

	out := &bytes.Buffer{}
	wf, err := New(Env{
		Settings: settings,
		Exec:     fake,
		In:       strings.NewReader(""),
		Out:      out,
		Workdir:  filepath.Join(root, "work"),
		Answer:   answer,
	}, tk)
	require.NoError(t, err)

	return &fixture{root: root, task: tk, fake: fake, out: out, wf: wf}
}

func (f *fixture) outputs(t *testing.T, names ...string) string {
	t.Helper()
	dir := task.OutputDir(f.task.OutDir, f.task.TaskName)
	require.NoError(t, os.MkdirAll(dir, 0755))
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), nil, 0644))
	}
	return dir
}

func lines(t *testing.T, path string) []string {
	t.Helper()
	l, err := task.ReadLines(path)
	require.NoError(t, err)
	return l
}

func TestCreate(t *testing.T) {
	f := newFixture(t, ui.AnswerNo)
	l := f.wf.Layout()

	require.NoError(t, f.wf.Create(context.Background(), Options{Queue: "short"}))

	assert.Equal(t, []string{"/store/a.root"}, lines(t, filepath.Join(l.FileLists(), "input_run1.txt")))
	assert.Equal(t, []string{"/store/b.root"}, lines(t, filepath.Join(l.FileLists(), "input_run2.txt")))
	assert.Equal(t, []string{"input_run1.txt", "input_run2.txt"}, lines(t, l.JobList()))

	summary, err := task.ReadSummary(l.Summary())
	require.NoError(t, err)
	assert.Equal(t, task.Summary{TaskName: "T", OutDir: f.task.OutDir, NumJobs: 2}, summary)

	all := lines(t, l.AllJobs())
	require.Len(t, all, 2)
	assert.True(t, strings.HasPrefix(all[0], "sbatch --job-name=T_0001 -o /logs/%x_%A_0001.out"))
	assert.Contains(t, all[1], filepath.Join(l.Dir, "Cert_Golden.json"))
	assert.True(t, strings.HasSuffix(all[1], filepath.Join(l.FileLists(), "input_run2.txt")))

	test := lines(t, l.TestJob())
	require.Len(t, test, 1)
	assert.Contains(t, test[0], "--job-name=T_test")

	script, err := os.ReadFile(l.JobScript())
	require.NoError(t, err)
	assert.Contains(t, string(script), "#SBATCH --partition=short")
	assert.FileExists(t, filepath.Join(l.Dir, "Cert_Golden.json"))

	for _, call := range f.fake.Calls() {
		assert.NotEqual(t, "sh", call.Binary, "answer n must not submit")
	}
	assert.Contains(t, f.out.String(), "Processing runs: 1, 2")
}

func TestCreate_ExplicitRunsAndCleanFileLists(t *testing.T) {
	f := newFixture(t, ui.AnswerNo)
	f.task.Runs = config.RunSelection{Explicit: true, Runs: []string{"1"}}
	l := f.wf.Layout()

	require.NoError(t, os.MkdirAll(l.FileLists(), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(l.FileLists(), "input_run99.txt"), nil, 0644))

	require.NoError(t, f.wf.Create(context.Background(), Options{}))
	assert.Equal(t, []string{"input_run1.txt"}, lines(t, l.JobList()))
	assert.Len(t, lines(t, l.AllJobs()), 1)
}

func TestCreate_NoRunsWritesEmptyTestJob(t *testing.T) {
	f := newFixture(t, ui.AnswerTest)
	f.task.Runs = config.RunSelection{Explicit: true}

	require.NoError(t, f.wf.Create(context.Background(), Options{}))
	assert.FileExists(t, f.wf.Layout().TestJob())
	assert.Empty(t, lines(t, f.wf.Layout().TestJob()))
	assert.Contains(t, f.out.String(), "submitted 0 jobs from test.sh")

	for _, call := range f.fake.Calls() {
		assert.NotEqual(t, "sh", call.Binary)
	}
}

func TestCreate_RequiresCertification(t *testing.T) {
	f := newFixture(t, ui.AnswerNo)
	f.task.Cert = ""
	err := f.wf.Create(context.Background(), Options{})
	assert.True(t, errors.Is(err, config.ErrNoCertification))
}

func TestCreate_SubmitsAndRecordsLedger(t *testing.T) {
	f := newFixture(t, ui.AnswerYes)
	require.NoError(t, f.wf.Create(context.Background(), Options{}))

	var submitted []runner.Command
	for _, c := range f.fake.Calls() {
		if c.Binary == "sh" {
			submitted = append(submitted, c)
		}
	}
	require.Len(t, submitted, 2)
	assert.Equal(t, f.wf.Layout().Dir, submitted[0].WorkingDirectory)
	assert.Contains(t, f.out.String(), "submitted 2 jobs from alljobs.sh")

	l, err := ledger.Open(f.wf.Layout().Ledger())
	require.NoError(t, err)
	defer l.Close()
	entries, err := l.Entries(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "5", entries[0].SchedulerJobID)
	assert.Equal(t, entries[0].BatchID, entries[1].BatchID)
}

func TestSubmit_TestAnswerAndFailure(t *testing.T) {
	f := newFixture(t, ui.AnswerNo)
	require.NoError(t, f.wf.Create(context.Background(), Options{}))

	f.wf.env.Answer = ui.AnswerTest
	require.NoError(t, f.wf.Submit(context.Background(), Options{}))
	assert.Contains(t, f.out.String(), "submitted 1 jobs from test.sh")

	failing := runner.NewFake().OnBinary("sh", "sbatch: error: invalid partition", 1)
	f.wf.env.Exec = failing
	f.wf.sched.Exec = failing
	f.wf.env.Answer = ui.AnswerYes
	err := f.wf.Submit(context.Background(), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0 of 2 jobs submitted")
}

func TestSubmit_InteractiveAnswer(t *testing.T) {
	f := newFixture(t, "")
	f.wf.env.In = strings.NewReader("n\n")
	f.wf.env.Answer = ""
	require.NoError(t, f.wf.Create(context.Background(), Options{}))
	assert.Contains(t, f.out.String(), "(y/n/test)")
}

func TestStatus(t *testing.T) {
	f := newFixture(t, ui.AnswerNo)
	require.NoError(t, f.wf.Create(context.Background(), Options{}))

	dir := f.outputs(t, "T_0001.root")
	logs := filepath.Join(dir, "logs")
	require.NoError(t, os.MkdirAll(logs, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(logs, "T_0001_1_0001.out"), nil, 0644))

	f.fake.OnBinary("squeue", "3 standard T_0002 me PD 0:00 1 (Priority)\n", 0)

	report, err := f.wf.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ui.StatusReport{Task: "T", Jobs: 2, Pending: 1, Done: 1, Completed: 1, Resubmitted: -1}, report)

	again, err := f.wf.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, report, again)

	var query []string
	for _, c := range f.fake.Calls() {
		if c.Binary == "squeue" {
			query = c.Arguments
		}
	}
	assert.Equal(t, []string{"-n", "T_0001,T_0002"}, query)

	require.NoError(t, f.wf.PrintStatus(context.Background()))
	assert.Contains(t, f.out.String(), "Status of Task T: (2 Jobs)")
}

func TestStatus_RequiresSummary(t *testing.T) {
	f := newFixture(t, ui.AnswerNo)
	_, err := f.wf.Status(context.Background())
	assert.True(t, errors.Is(err, task.ErrNoSummary))
}

func TestMissingAndResubmit(t *testing.T) {
	f := newFixture(t, ui.AnswerNo)
	require.NoError(t, f.wf.Create(context.Background(), Options{}))
	f.outputs(t, "T_0001.root")

	missing, err := f.wf.Missing(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{2}, missing)

	selected, err := f.wf.Resubmit(context.Background(), Options{Time: "02:00:00"})
	require.NoError(t, err)
	all := lines(t, f.wf.Layout().AllJobs())
	assert.Equal(t, []string{all[1]}, selected)
	assert.Equal(t, selected, lines(t, f.wf.Layout().Resubmit()))

	script, err := os.ReadFile(f.wf.Layout().JobScript())
	require.NoError(t, err)
	assert.Contains(t, string(script), "#SBATCH --time=02:00:00")

	f.outputs(t, "T_0002.root")
	require.NoError(t, f.wf.PrintResubmit(context.Background(), Options{}))
	assert.NoFileExists(t, f.wf.Layout().Resubmit())
	assert.Contains(t, f.out.String(), "No jobs to resubmit")

	require.NoError(t, f.wf.PrintMissing(context.Background()))
	assert.Contains(t, f.out.String(), "No missing jobs")
}

func TestSubmit_ResubmitScript(t *testing.T) {
	f := newFixture(t, ui.AnswerNo)
	require.NoError(t, f.wf.Create(context.Background(), Options{}))
	f.outputs(t, "T_0002.root")
	_, err := f.wf.Resubmit(context.Background(), Options{})
	require.NoError(t, err)

	f.wf.env.Answer = ui.AnswerYes
	require.NoError(t, f.wf.Submit(context.Background(), Options{Script: task.ResubmitFile}))
	assert.Contains(t, f.out.String(), "submitted 1 jobs from resubmit.sh")
}

func TestMerge(t *testing.T) {
	f := newFixture(t, ui.AnswerNo)
	require.NoError(t, f.wf.Create(context.Background(), Options{}))
	f.outputs(t, "T_0001.root", "T_0002.root")

	require.NoError(t, f.wf.Merge(context.Background(), Options{}))

	l := f.wf.Layout()
	merged := lines(t, l.MergeAllJobs())
	require.Len(t, merged, 1)
	assert.True(t, strings.HasSuffix(merged[0], " hadd --hadd"))
	assert.NoFileExists(t, l.MergeJobList())
	assert.Len(t, lines(t, l.MergeList(1)), 2)
}

func TestMerge_DebugKeepsJobListAndNoInputs(t *testing.T) {
	f := newFixture(t, ui.AnswerNo)
	f.task.Program = "haddnano.py"
	require.NoError(t, f.wf.Create(context.Background(), Options{}))

	require.NoError(t, f.wf.Merge(context.Background(), Options{}))
	assert.Contains(t, f.out.String(), "no output files to merge")

	f.outputs(t, "T_0001.root")
	f.wf.env.Debug = true
	require.NoError(t, f.wf.Merge(context.Background(), Options{}))
	assert.FileExists(t, f.wf.Layout().MergeJobList())
	assert.Contains(t, lines(t, f.wf.Layout().MergeAllJobs())[0], " haddnano.py --hadd")
}

func TestHistory(t *testing.T) {
	f := newFixture(t, ui.AnswerYes)
	require.NoError(t, f.wf.History(context.Background()))
	assert.Contains(t, f.out.String(), "No submissions recorded for T")

	require.NoError(t, f.wf.Create(context.Background(), Options{}))
	f.out.Reset()
	require.NoError(t, f.wf.History(context.Background()))
	assert.Contains(t, f.out.String(), "T_0001")
	assert.Contains(t, f.out.String(), "T_0002")
}

func TestCheckProxy(t *testing.T) {
	f := newFixture(t, ui.AnswerNo)
	require.NoError(t, f.wf.CheckProxy(context.Background()))

	f.wf.env.Exec = runner.NewFake().OnBinary("voms-proxy-info", "10\n", 0)
	err := f.wf.CheckProxy(context.Background())
	assert.True(t, errors.Is(err, proxy.ErrProxyTooShort))
}
