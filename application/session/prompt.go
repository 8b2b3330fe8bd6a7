package session

import (
	"bufio"
	"fmt"
	"io"
	"socket-client/application/http"
	"strings"

	"github.com/pkg/errors"
)

// ErrExit is returned by a [Prompter] when the user asks to quit or input ends.
var ErrExit = errors.New("exit requested")

const exitWord = "exit"

// Prompter asks the interactive questions of a session, one line per answer.
type Prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewScanner(in), out: out}
}

func (p *Prompter) ask(question string) (string, error) {
	fmt.Fprint(p.out, question)

	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", errors.Wrap(err, "reading input")
		}
		fmt.Fprintln(p.out)
		return "", ErrExit
	}

	return strings.TrimSpace(p.in.Text()), nil
}

// AskSpecific reports whether the user wants to name a target.
// Anything but "n" counts as yes.
func (p *Prompter) AskSpecific() (bool, error) {
	answer, err := p.ask("Specific target? [y/n, exit to quit]: ")
	if err != nil {
		return false, err
	}

	switch strings.ToLower(answer) {
	case exitWord:
		return false, ErrExit
	case "n":
		return false, nil
	default:
		return true, nil
	}
}

// AskPlan asks for a URL, a method and, for methods that carry one, a body.
func (p *Prompter) AskPlan() (Plan, error) {
	url, err := p.ask("URL (http or https):\n")
	if err != nil {
		return Plan{}, err
	}

	method, err := p.ask("Method (GET, POST, PUT, PATCH, DELETE), enter for GET:\n")
	if err != nil {
		return Plan{}, err
	}
	method = http.NormalizeMethod(method)

	plan := Plan{URL: url, Method: method}
	if !http.CarriesPayload(method) {
		return plan, nil
	}

	body, err := p.ask("Body (JSON), enter for none:\n")
	if err != nil {
		return Plan{}, err
	}
	if body != "" {
		plan.Body = []byte(body)
	}

	return plan, nil
}

// AskContinue returns [ErrExit] unless the user wants another cycle.
func (p *Prompter) AskContinue() error {
	answer, err := p.ask("Press enter to continue or type 'exit' to quit: ")
	if err != nil {
		return err
	}
	if strings.EqualFold(answer, exitWord) {
		return ErrExit
	}
	return nil
}
