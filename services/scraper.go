package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrScraperNotConfigured is returned when a scrape is requested but no
// scraper command is set.
var ErrScraperNotConfigured = errors.New("scraper command not configured")

// ExternalProcessError reports a scraper run that exited non-zero or printed
// nothing. Output and Stderr hold the captured text verbatim.
type ExternalProcessError struct {
	Command string
	Output  string
	Stderr  string
	Err     error
}

func (e *ExternalProcessError) Error() string {
	return fmt.Sprintf("scraper %q: %v", e.Command, e.Err)
}

func (e *ExternalProcessError) Unwrap() error { return e.Err }

// Diagnostics returns stderr if the process wrote any, else stdout.
func (e *ExternalProcessError) Diagnostics() string {
	if e.Stderr != "" {
		return e.Stderr
	}
	return e.Output
}

// ScraperRunner runs the external preview scraper synchronously.
type ScraperRunner struct {
	command []string
}

// NewScraperRunner returns nil when command is empty.
func NewScraperRunner(command []string) *ScraperRunner {
	if len(command) == 0 {
		return nil
	}
	return &ScraperRunner{command: command}
}

// Run executes the command and returns its stdout and stderr.
func (s *ScraperRunner) Run(ctx context.Context) (stdout, stderr string, err error) {
	if s == nil {
		return "", "", ErrScraperNotConfigured
	}

	var out, errOut bytes.Buffer
	cmd := exec.CommandContext(ctx, s.command[0], s.command[1:]...)
	cmd.Stdout = &out
	cmd.Stderr = &errOut

	runErr := cmd.Run()
	stdout, stderr = out.String(), errOut.String()
	procErr := &ExternalProcessError{
		Command: strings.Join(s.command, " "),
		Output:  stdout,
		Stderr:  stderr,
	}

	switch {
	case runErr != nil:
		procErr.Err = runErr
		return stdout, stderr, procErr
	case strings.TrimSpace(stdout) == "":
		procErr.Err = errors.New("produced no output")
		return stdout, stderr, procErr
	}
	return stdout, stderr, nil
}
