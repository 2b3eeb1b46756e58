// Package executor implements the Parallel Executor: it walks an
// action.Graph honoring predecessor ordering, runs each non-skippable action
// through a Runner with a bounded worker pool, and aggregates the terminal
// run status the front end reports as an exit code.
package executor

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/forgebuild/forge/internal/action"
)

// Outcome is the terminal disposition of one action in a run.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
	OutcomeBlocked   Outcome = "blocked"
	OutcomeCancelled Outcome = "cancelled"
)

// ProgressEvent is emitted once per action, in completion order, never
// concurrently with the mutation of executor state (the sink may be called
// concurrently by different workers, but never re-entrantly for one action).
type ProgressEvent struct {
	ActionID string
	Member   string
	Kind     string
	Outcome  Outcome
	Duration time.Duration
}

// ProgressSink receives ProgressEvents; the core treats it as a thread-safe
// observer and never holds a lock while calling it.
type ProgressSink func(ProgressEvent)

// RunStatus is the terminal status of one execute call.
type RunStatus int

const (
	Success RunStatus = iota
	PartialFailure
	Cancelled
)

// Report is the summary execute returns.
type Report struct {
	Status  RunStatus
	Failed  []string // action IDs, sorted
	Blocked int
	Err     error // *multierror.Error aggregating every failed action's error, or nil
}

// Runner executes one action's underlying compile or link subprocess and
// records its cache entry on success.
type Runner interface {
	Execute(ctx context.Context, a *action.Action) error
}

// CancelFunc reports whether the run has been asked to stop; it is consulted
// only at the point a worker is about to pick up a new action.
type CancelFunc func() bool

// Execute runs every non-skippable action in g, bounded to jobs concurrent
// subprocesses via errgroup.SetLimit, and returns once the graph has fully
// drained (every action reached a terminal outcome).
func Execute(ctx context.Context, g *action.Graph, jobs int, runner Runner, sink ProgressSink, cancelled CancelFunc) Report {
	if jobs < 1 {
		jobs = 1
	}
	if sink == nil {
		sink = func(ProgressEvent) {}
	}
	if cancelled == nil {
		cancelled = func() bool { return false }
	}

	sched := newScheduler(g, sink)
	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(jobs)

	ready := sched.start()
	for a := range ready {
		a := a
		eg.Go(func() error {
			runOne(egctx, a, runner, sink, cancelled, sched)
			return nil
		})
	}
	_ = eg.Wait()

	return sched.report()
}

func runOne(ctx context.Context, a *action.Action, runner Runner, sink ProgressSink, cancelled CancelFunc, sched *scheduler) {
	start := time.Now()

	if cancelled() {
		sched.complete(a, OutcomeCancelled, nil)
		sink(ProgressEvent{ActionID: a.ReportID, Member: a.Member, Kind: a.Kind.String(), Outcome: OutcomeCancelled, Duration: time.Since(start)})
		return
	}

	err := runner.Execute(ctx, a)
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailed
	}
	sched.complete(a, outcome, err)
	sink(ProgressEvent{ActionID: a.ReportID, Member: a.Member, Kind: a.Kind.String(), Outcome: outcome, Duration: time.Since(start)})
}

// scheduler tracks per-action completion state and cascades predecessor
// completion to newly-ready dependents, under a single mutex per the
// concurrency model's shared-state description.
type scheduler struct {
	g    *action.Graph
	sink ProgressSink

	mu           sync.Mutex
	pendingPreds map[string]int
	outcome      map[string]Outcome
	errs         map[string]error
	remaining    int

	ready    chan *action.Action
	closeNop sync.Once
}

func newScheduler(g *action.Graph, sink ProgressSink) *scheduler {
	s := &scheduler{
		g:            g,
		sink:         sink,
		pendingPreds: make(map[string]int, len(g.Nodes)),
		outcome:      make(map[string]Outcome, len(g.Nodes)),
		errs:         make(map[string]error, len(g.Nodes)),
		remaining:    len(g.Nodes),
		ready:        make(chan *action.Action, len(g.Nodes)),
	}
	for _, a := range g.Nodes {
		s.pendingPreds[a.ID] = len(a.Predecessors)
	}
	return s
}

// start seeds the ready channel with every initially-unblocked action
// (skippable ones complete synchronously and cascade) and returns the
// channel for the caller to range over until it closes.
func (s *scheduler) start() <-chan *action.Action {
	if len(s.g.Nodes) == 0 {
		close(s.ready)
		return s.ready
	}
	for _, a := range s.g.Nodes {
		s.mu.Lock()
		pending := s.pendingPreds[a.ID]
		s.mu.Unlock()
		if pending == 0 {
			s.admit(a)
		}
	}
	return s.ready
}

// admit dispatches a ready action: skippable actions complete synchronously
// (cascading to their own dependents) without ever occupying a worker slot.
func (s *scheduler) admit(a *action.Action) {
	if a.Skippable {
		s.complete(a, OutcomeSkipped, nil)
		return
	}
	s.ready <- a
}

// complete records a's terminal outcome and, on success, cascades readiness
// to dependents; on failure, cascades a Blocked outcome transitively.
func (s *scheduler) complete(a *action.Action, outcome Outcome, err error) {
	s.mu.Lock()
	if _, already := s.outcome[a.ID]; already {
		s.mu.Unlock()
		return
	}
	s.outcome[a.ID] = outcome
	if err != nil {
		s.errs[a.ID] = err
	}
	s.remaining--
	done := s.remaining == 0
	s.mu.Unlock()

	if outcome == OutcomeSkipped && s.sink != nil {
		s.sink(ProgressEvent{ActionID: a.ReportID, Member: a.Member, Kind: a.Kind.String(), Outcome: OutcomeSkipped})
	}

	if outcome == OutcomeSuccess || outcome == OutcomeSkipped {
		for _, depID := range s.g.Dependents(a.ID) {
			s.mu.Lock()
			s.pendingPreds[depID]--
			_, decided := s.outcome[depID] // already Blocked by another failed predecessor
			becameReady := s.pendingPreds[depID] == 0 && !decided
			s.mu.Unlock()
			if becameReady {
				dep, _, ok := s.g.ByID(depID)
				if ok {
					s.admit(dep)
				}
			}
		}
	} else {
		s.blockDependents(a.ID)
	}

	if done {
		s.closeNop.Do(func() { close(s.ready) })
	}
}

func (s *scheduler) blockDependents(id string) {
	for _, depID := range s.g.Dependents(id) {
		s.mu.Lock()
		if _, already := s.outcome[depID]; already {
			s.mu.Unlock()
			continue
		}
		s.outcome[depID] = OutcomeBlocked
		s.remaining--
		done := s.remaining == 0
		s.mu.Unlock()

		if s.sink != nil {
			if dep, _, ok := s.g.ByID(depID); ok {
				s.sink(ProgressEvent{ActionID: dep.ReportID, Member: dep.Member, Kind: dep.Kind.String(), Outcome: OutcomeBlocked})
			}
		}

		if done {
			s.closeNop.Do(func() { close(s.ready) })
		}
		s.blockDependents(depID)
	}
}

func (s *scheduler) report() Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	var failed []string
	blocked := 0
	anyCancelled := false
	var merr *multierror.Error

	for id, outcome := range s.outcome {
		switch outcome {
		case OutcomeFailed:
			failed = append(failed, id)
			if err := s.errs[id]; err != nil {
				merr = multierror.Append(merr, err)
			}
		case OutcomeBlocked:
			blocked++
		case OutcomeCancelled:
			anyCancelled = true
		}
	}
	sort.Strings(failed)

	status := Success
	if anyCancelled {
		status = Cancelled
	}
	if len(failed) > 0 {
		status = PartialFailure
	}

	var err error
	if merr != nil {
		err = merr.ErrorOrNil()
	}
	return Report{Status: status, Failed: failed, Blocked: blocked, Err: err}
}
