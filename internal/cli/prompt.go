package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/document-locker/locker/internal/state"
)

// prompter reads answers from in and writes questions to out.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out}
}

// line asks for a value; an empty answer returns def.
func (p *prompter) line(label, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}
	input, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || input == "") {
		return "", err
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return def, nil
	}
	return input, nil
}

// password reads without echo when stdin is a terminal.
func (p *prompter) password(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	if term.IsTerminal(int(os.Stdin.Fd())) {
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(p.out)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	input, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || input == "") {
		return "", err
	}
	return strings.TrimRight(input, "\r\n"), nil
}

// yesNo asks until it gets y/yes or n/no. EOF counts as no.
func (p *prompter) yesNo(question string) bool {
	for {
		fmt.Fprintf(p.out, "%s [y/N]: ", question)
		input, err := p.in.ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(input)) {
		case "y", "yes":
			return true
		case "n", "no":
			return false
		case "":
			return false
		}
		if err != nil {
			return false
		}
		fmt.Fprintln(p.out, "Please answer y or n.")
	}
}

// confirmer adapts the prompter to state.Confirmer. assumeYes skips the
// question.
func (p *prompter) confirmer(assumeYes bool) state.Confirmer {
	return state.ConfirmFunc(func(message string) bool {
		if assumeYes {
			return true
		}
		return p.yesNo(message)
	})
}
