package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusReport_Render(t *testing.T) {
	r := StatusReport{Task: "Run2018D", Jobs: 10, Pending: 2, Running: 3, Done: 4, Completed: 5, Resubmitted: -1}
	want := "Status of Task Run2018D: (10 Jobs)\n" +
		"Jobs - Pending                : 2\n" +
		"     - Running                : 3\n" +
		"     - Done (with STDOUT)     : 4\n" +
		"------------------------------------\n" +
		"     - Completed (has output) : 5\n"
	if diff := cmp.Diff(want, r.Render()); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}

	r.Resubmitted = 1
	assert.True(t, strings.HasSuffix(r.Render(), "Resubmitted (ledger)   : 1\n"))
}

func TestRule(t *testing.T) {
	assert.Len(t, Rule(), RuleWidth)
	assert.Equal(t, "", strings.Trim(Rule(), "-"))
}

func TestParseAnswer(t *testing.T) {
	tests := []struct {
		in   string
		want Answer
	}{
		{"y\n", AnswerYes},
		{"YES", AnswerYes},
		{"n", AnswerNo},
		{"", AnswerNo},
		{" test ", AnswerTest},
	}
	for _, tt := range tests {
		got, err := ParseAnswer(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseAnswer("maybe")
	assert.Error(t, err)
}

func TestAsk(t *testing.T) {
	var out bytes.Buffer
	p := NewPrinter(&out)

	assert.Equal(t, AnswerTest, p.Ask(strings.NewReader("test\n"), SubmitQuestion))
	assert.Contains(t, out.String(), "(y/n/test)")

	assert.Equal(t, AnswerNo, p.Ask(strings.NewReader(""), SubmitQuestion))
	assert.Equal(t, AnswerYes, p.Ask(strings.NewReader("y"), SubmitQuestion))

	out.Reset()
	assert.Equal(t, AnswerNo, p.Ask(strings.NewReader("sure\n"), SubmitQuestion))
	assert.Contains(t, out.String(), "WARNING")
}

func TestPrinterBanners(t *testing.T) {
	var out bytes.Buffer
	p := NewPrinter(&out)
	p.Fatal("no proxy")
	p.Warn("catalog failed")
	p.Done("resubmit.sh", "/work/T/resubmit.sh")

	text := out.String()
	assert.Contains(t, text, "FATAL")
	assert.Contains(t, text, "no proxy")
	assert.Contains(t, text, "WARNING")
	assert.Contains(t, text, "/work/T/resubmit.sh")
}

func TestHistoryTable(t *testing.T) {
	rows := []HistoryRow{
		{JobName: "T_0001", Attempts: 2, Failures: 1, LastJobID: "77", LastSubmitted: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
		{JobName: "T_0002", Attempts: 1},
	}
	view := HistoryTable("T", rows).View(DefaultStyles())

	assert.Contains(t, view, "Submission history of T")
	assert.Contains(t, view, "T_0001")
	assert.Contains(t, view, "2024-01-02 03:04:05")
	assert.Contains(t, view, "Last job id")

	lines := strings.Split(strings.TrimRight(view, "\n"), "\n")
	assert.Len(t, lines, 5)

	var out bytes.Buffer
	WriteHistory(&out, DefaultStyles(), "T", nil)
	assert.Equal(t, "No submissions recorded for T\n", out.String())
}

func TestEmptyTable(t *testing.T) {
	assert.Equal(t, "", NewTable("x", []string{"a"}).View(DefaultStyles()))
}

func TestProgress(t *testing.T) {
	var out bytes.Buffer
	p := NewProgress(&out, "preparing job scripts", 4)
	for i := 0; i < 4; i++ {
		p.Increment()
	}
	p.Finish()

	assert.Equal(t, 1.0, p.Percent())
	assert.Contains(t, out.String(), "4/4")
	assert.True(t, strings.HasSuffix(out.String(), "\n"))

	assert.Equal(t, 1.0, NewProgress(&out, "x", 0).Percent())
}
