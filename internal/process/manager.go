// Package process adapts the teacher's child-process supervision pattern to
// the core's needs: it tracks every subprocess a worker starts and, on
// shutdown, waits for them to finish rather than signaling them to stop. The
// core never needs to interrupt a running compile or link per the
// cancellation model (already-running subprocesses are never killed).
package process

import (
	"errors"
	"fmt"
	"os/exec"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// ErrClosing is returned by Exec once the manager has started draining.
var ErrClosing = errors.New("process manager is draining")

// ChildExit reports a subprocess that exited with a non-zero status.
type ChildExit struct {
	ExitCode int
	Command  string
}

func (ce *ChildExit) Error() string {
	return fmt.Sprintf("command %s exited (%d)", ce.Command, ce.ExitCode)
}

// Manager tracks every child spawned through it so Close can wait for them
// all to finish before returning.
type Manager struct {
	mu       sync.Mutex
	draining bool
	children map[*Child]struct{}
	logger   hclog.Logger
}

// NewManager builds a Manager that logs child lifecycle events under logger.
func NewManager(logger hclog.Logger) *Manager {
	return &Manager{
		children: make(map[*Child]struct{}),
		logger:   logger,
	}
}

// Exec starts cmd and blocks until it exits, returning a nil error on a
// clean exit, *ChildExit on a non-zero exit, or ErrClosing if the manager is
// already draining.
func (m *Manager) Exec(cmd *exec.Cmd) error {
	m.mu.Lock()
	if m.draining {
		m.mu.Unlock()
		return ErrClosing
	}
	child := newChild(cmd, m.logger)
	m.children[child] = struct{}{}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.children, child)
		m.mu.Unlock()
	}()

	if err := child.start(); err != nil {
		return err
	}
	<-child.exitCh
	if child.exitCode != 0 {
		return &ChildExit{ExitCode: child.exitCode, Command: child.label}
	}
	return nil
}

// Close marks the manager as draining (Exec no longer admits new children)
// and blocks until every in-flight child has exited on its own.
func (m *Manager) Close() {
	m.mu.Lock()
	m.draining = true
	children := make([]*Child, 0, len(m.children))
	for c := range m.children {
		children = append(children, c)
	}
	m.mu.Unlock()

	for _, c := range children {
		<-c.exitCh
	}
}
