package terminal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/digitalworks2020/devops-cli/internal/domain"
	"github.com/digitalworks2020/devops-cli/internal/ports"
)

// ExitToken typed at any prompt ends the session.
const ExitToken = "exit"

// Source reads answers line by line. Secret answers are read without echo
// when the input is a terminal.
type Source struct {
	reader *bufio.Reader
	out    io.Writer
	fd     int

	isTerminal   func(fd int) bool
	readPassword func(fd int) ([]byte, error)
}

var _ ports.InputSource = (*Source)(nil)

func NewSource(in *os.File, out io.Writer) *Source {
	return &Source{
		reader:       bufio.NewReader(in),
		out:          out,
		fd:           int(in.Fd()),
		isTerminal:   term.IsTerminal,
		readPassword: term.ReadPassword,
	}
}

// NewReaderSource never treats its input as a terminal.
func NewReaderSource(r io.Reader, out io.Writer) *Source {
	return &Source{
		reader:     bufio.NewReader(r),
		out:        out,
		fd:         -1,
		isTerminal: func(int) bool { return false },
	}
}

func (s *Source) ReadLine(prompt string) (string, error) {
	s.prompt(prompt)
	return s.readLine()
}

func (s *Source) ReadSecret(prompt string) (string, error) {
	s.prompt(prompt)
	// Lines typed ahead are already buffered and echoed; they are consumed in
	// order instead of being skipped by the raw password read.
	if !s.isTerminal(s.fd) || s.reader.Buffered() > 0 {
		return s.readLine()
	}

	raw, err := s.readPassword(s.fd)
	_, _ = fmt.Fprintln(s.out)
	if err != nil {
		return "", fmt.Errorf("read secret input: %w", err)
	}
	return checkExit(string(raw))
}

func (s *Source) readLine() (string, error) {
	line, err := s.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line == "" {
			return "", domain.ErrExitRequested
		}
		if !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read input: %w", err)
		}
	}
	return checkExit(strings.TrimRight(line, "\r\n"))
}

func (s *Source) prompt(prompt string) {
	if prompt != "" && s.out != nil {
		_, _ = io.WriteString(s.out, prompt)
	}
}

func checkExit(value string) (string, error) {
	if strings.EqualFold(strings.TrimSpace(value), ExitToken) {
		return "", domain.ErrExitRequested
	}
	return value, nil
}
