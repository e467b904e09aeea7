// Package scheduler renders batch submission lines, submits them and
// queries the queue.
package scheduler

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// JobIndex renders a job index the way job names and log paths carry it.
func JobIndex(i int) string {
	return fmt.Sprintf("%04d", i)
}

// JobName is the scheduler job name of index i.
func JobName(task string, i int) string {
	return task + "_" + JobIndex(i)
}

// JobParams are the fields of one processing submission line.
type JobParams struct {
	Submit       string
	Task         string
	Index        string
	LogDir       string
	JobScript    string
	CMSSW        string
	OutDir       string
	DataTier     string
	Conditions   string
	CMSRunScript string
	Cert         string
	FileList     string
}

// MergeParams are the fields of one merge submission line.
type MergeParams struct {
	Submit    string
	Task      string
	Index     string
	LogDir    string
	JobScript string
	FileList  string
	OutDir    string
	Program   string
}

var (
	jobLine = template.Must(template.New("job").Parse(
		`{{.Submit}} --job-name={{.Task}}_{{.Index}} -o {{.LogDir}}/%x_%A_{{.Index}}.out -e {{.LogDir}}/%x_%A_{{.Index}}.err ` +
			`{{.JobScript}} {{.Task}}_{{.Index}} {{.CMSSW}} {{.OutDir}}  {{.Index}} {{.DataTier}} {{.Conditions}} {{.CMSRunScript}} {{.Cert}} {{.FileList}}`))

	mergeLine = template.Must(template.New("merge").Parse(
		`{{.Submit}} --job-name={{.Task}}_MERGING_{{.Index}} -o {{.LogDir}}/%x_%A_{{.Index}}.out -e {{.LogDir}}/%x_%A_{{.Index}}.err ` +
			`{{.JobScript}} {{.Task}}_JOBMERGING{{.Index}} {{.Index}} {{.FileList}} {{.OutDir}} {{.Program}} --hadd`))
)

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s line: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// RenderJob renders one processing submission line.
func RenderJob(p JobParams) (string, error) {
	return render(jobLine, p)
}

// RenderMerge renders one merge submission line.
func RenderMerge(p MergeParams) (string, error) {
	return render(mergeLine, p)
}

// TestLine derives the single-job test submission from the first line of a
// submission list.
func TestLine(lines []string) (string, bool) {
	if len(lines) == 0 {
		return "", false
	}
	return strings.ReplaceAll(lines[0], JobIndex(1), "test"), true
}

// JobNames extracts the job names from submission lines: the second field
// with its --job-name= prefix stripped.
func JobNames(lines []string) []string {
	var names []string
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		names = append(names, strings.TrimPrefix(fields[1], "--job-name="))
	}
	return names
}

// FilterByIndex keeps the lines whose job name is <task>_<NNNN> for one of
// the given indices, in index order.
func FilterByIndex(lines []string, task string, indices []int) []string {
	byName := make(map[string][]string, len(lines))
	for _, line := range lines {
		if names := JobNames([]string{line}); len(names) == 1 {
			byName[names[0]] = append(byName[names[0]], line)
		}
	}
	var out []string
	for _, idx := range indices {
		out = append(out, byName[JobName(task, idx)]...)
	}
	return out
}
