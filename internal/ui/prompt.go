package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Answer is the reply to the submission prompt.
type Answer string

const (
	AnswerYes  Answer = "y"
	AnswerNo   Answer = "n"
	AnswerTest Answer = "test"
)

// SubmitQuestion is the submission prompt.
const SubmitQuestion = "Do you want to directly submit the jobs to slurm (all jobs or 1 test job)? (y/n/test)"

// ParseAnswer accepts y, n and test.
func ParseAnswer(s string) (Answer, error) {
	switch a := Answer(strings.ToLower(strings.TrimSpace(s))); a {
	case AnswerYes, AnswerNo, AnswerTest:
		return a, nil
	case "yes":
		return AnswerYes, nil
	case "no", "":
		return AnswerNo, nil
	}
	return "", fmt.Errorf("invalid answer %q, expected y, n or test", s)
}

// Ask prints question and reads one line from in. End of input and
// unrecognised replies count as no.
func (p *Printer) Ask(in io.Reader, question string) Answer {
	p.Println(p.Styles.Success.Render(question))
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return AnswerNo
	}
	a, err := ParseAnswer(line)
	if err != nil {
		p.Warn(err.Error())
		return AnswerNo
	}
	return a
}
