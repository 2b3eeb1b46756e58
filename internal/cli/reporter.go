// Package cli wires the cobra command surface onto the core packages:
// config resolution, scanning, graph building, and execution, rendering
// progress the way the teacher's terminal UI gates color and spinners on
// TTY detection.
package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/forgebuild/forge/internal/executor"
)

// IsTTY reports whether stdout is an interactive terminal, gating spinner
// and color use exactly as the teacher's logger package does.
var IsTTY = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

var (
	successPrefix = color.New(color.Bold, color.FgGreen, color.ReverseVideo).Sprint(" OK ")
	failPrefix    = color.New(color.Bold, color.FgRed, color.ReverseVideo).Sprint(" FAIL ")
	skipPrefix    = color.New(color.Bold, color.FgHiBlack, color.ReverseVideo).Sprint(" SKIP ")
)

// Reporter renders executor.ProgressEvents as they complete. Non-TTY output
// (CI logs, pipes) falls back to plain lines with no spinner or color.
type Reporter struct {
	out  io.Writer
	spin *spinner.Spinner
}

// NewReporter builds a Reporter writing to out, starting a spinner only
// when out is a live terminal.
func NewReporter(out io.Writer) *Reporter {
	r := &Reporter{out: out}
	if IsTTY {
		r.spin = spinner.New(spinner.CharSets[11], 125*time.Millisecond)
		r.spin.Writer = out
		r.spin.Suffix = " building"
		r.spin.Start()
	}
	return r
}

// Event is the ProgressSink Reporter exposes to executor.Execute.
func (r *Reporter) Event(ev executor.ProgressEvent) {
	line := formatEvent(ev)
	if r.spin != nil {
		r.spin.Lock()
		fmt.Fprintln(r.out, line)
		r.spin.Unlock()
		return
	}
	fmt.Fprintln(r.out, line)
}

// Close stops the spinner, if one was started.
func (r *Reporter) Close() {
	if r.spin != nil {
		r.spin.Stop()
	}
}

func formatEvent(ev executor.ProgressEvent) string {
	prefix := skipPrefix
	switch ev.Outcome {
	case executor.OutcomeSuccess:
		prefix = successPrefix
	case executor.OutcomeFailed, executor.OutcomeBlocked, executor.OutcomeCancelled:
		prefix = failPrefix
	}
	if !IsTTY {
		return fmt.Sprintf("[%s] %s %s (%s) %s", ev.Outcome, ev.Kind, ev.Member, ev.ActionID, ev.Duration.Round(time.Millisecond))
	}
	return fmt.Sprintf("%s %s %s %s", prefix, ev.Kind, ev.Member, ev.Duration.Round(time.Millisecond))
}
