package process

import (
	"fmt"
	"os/exec"
	"strings"
	"syscall"

	"github.com/hashicorp/go-hclog"
)

// Child wraps one subprocess. Unlike the teacher's child, there is no kill
// signal or timeout: the core never interrupts a running action, it only
// waits for it.
type Child struct {
	cmd    *exec.Cmd
	label  string
	logger hclog.Logger

	exitCh   chan struct{} // closed once, after exitCode is set: both Exec's
	                       // waiter and Close's drain loop read it safely
	exitCode int
}

func newChild(cmd *exec.Cmd, logger hclog.Logger) *Child {
	label := fmt.Sprintf("(%s) %s", cmd.Dir, strings.Join(cmd.Args, " "))
	return &Child{
		cmd:    cmd,
		label:  label,
		logger: logger.Named(label),
		exitCh: make(chan struct{}),
	}
}

func (c *Child) start() error {
	if err := c.cmd.Start(); err != nil {
		return err
	}
	go func() {
		err := c.cmd.Wait()
		code := 0
		if err != nil {
			code = 1
			if exitErr, ok := err.(*exec.ExitError); ok {
				if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
					code = status.ExitStatus()
				}
			}
		}
		c.exitCode = code
		close(c.exitCh)
	}()
	return nil
}
