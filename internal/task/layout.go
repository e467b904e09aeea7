// Package task owns the on-disk layout of a task directory and the files
// written once at create time: the summary, the job template copy and the
// certification copy.
package task

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// File names inside a task directory.
const (
	FileListDir        = "filelists"
	JobListFile        = "job_list.txt"
	AllJobsFile        = "alljobs.sh"
	TestJobFile        = "test.sh"
	ResubmitFile       = "resubmit.sh"
	JobScriptFile      = "slurm_jobscript.sh"
	SummaryFile        = "summary.txt"
	LedgerFile         = "ledger.db"
	AuditFile          = "exec_audit.jsonl"
	MergeJobListFile   = "merging_job_list.txt"
	MergeAllJobsFile   = "merging_alljobs.sh"
	MergeTestJobFile   = "merging_test.sh"
	MergeListPrefix    = "merging"
	MergedSubdir       = "merged"
	LogsSubdir         = "logs"
)

// Layout resolves the paths of one task directory.
type Layout struct {
	Dir string
}

// NewLayout returns the layout of <workdir>/<name>.
func NewLayout(workdir, name string) Layout {
	return Layout{Dir: filepath.Join(workdir, name)}
}

func (l Layout) path(name string) string { return filepath.Join(l.Dir, name) }

func (l Layout) FileLists() string     { return l.path(FileListDir) }
func (l Layout) JobList() string       { return filepath.Join(l.FileLists(), JobListFile) }
func (l Layout) AllJobs() string       { return l.path(AllJobsFile) }
func (l Layout) TestJob() string       { return l.path(TestJobFile) }
func (l Layout) Resubmit() string      { return l.path(ResubmitFile) }
func (l Layout) JobScript() string     { return l.path(JobScriptFile) }
func (l Layout) Summary() string       { return l.path(SummaryFile) }
func (l Layout) Ledger() string        { return l.path(LedgerFile) }
func (l Layout) Audit() string         { return l.path(AuditFile) }
func (l Layout) MergeJobList() string  { return filepath.Join(l.FileLists(), MergeJobListFile) }
func (l Layout) MergeAllJobs() string  { return l.path(MergeAllJobsFile) }
func (l Layout) MergeTestJob() string  { return l.path(MergeTestJobFile) }
func (l Layout) MergeList(i int) string {
	return filepath.Join(l.FileLists(), fmt.Sprintf("%s_%d", MergeListPrefix, i))
}

// OutputDir is where the jobs of a task write their outputs.
func OutputDir(outdir, name string) string {
	return filepath.Join(outdir, name)
}

// ResetFileLists creates the file list directory and removes any files
// already in it.
func (l Layout) ResetFileLists() error {
	dir := l.FileLists()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("failed to clean %s: %w", dir, err)
		}
	}
	return nil
}

// RemoveMergeLists deletes previous merging* files from the file list
// directory.
func (l Layout) RemoveMergeLists() error {
	entries, err := os.ReadDir(l.FileLists())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), MergeListPrefix) {
			if err := os.Remove(filepath.Join(l.FileLists(), e.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}

// InputLists returns the names of the per-run input lists, in lexical order.
func (l Layout) InputLists() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(l.FileLists(), "input*.txt"))
	if err != nil {
		return nil, err
	}
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = filepath.Base(m)
	}
	return names, nil
}

// CopyFile copies src to dst, preserving the source permission bits.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// WriteLines writes lines, each terminated by a newline.
func WriteLines(path string, lines []string) error {
	var sb strings.Builder
	for _, line := range lines {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(sb.String()), 0644)
}

// ReadLines returns the non-empty lines of a file.
func ReadLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

// CopyCertification copies the certification file into the task directory
// and returns the copy's path.
func (l Layout) CopyCertification(src string) (string, error) {
	dst := l.path(filepath.Base(src))
	if err := CopyFile(src, dst); err != nil {
		return "", fmt.Errorf("failed to copy certification: %w", err)
	}
	return dst, nil
}
