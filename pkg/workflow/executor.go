// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	flowerrors "github.com/tombee/flowcore/pkg/errors"
)

// MetricsCollector receives scheduling observability events. A nil
// MetricsCollector is valid: every call site nil-checks before use.
type MetricsCollector interface {
	RecordRunStart()
	RecordRunComplete(status Status)
	RecordStepComplete(kind StepKind, status Status)
}

// ExecutorOption configures an Executor at construction time.
type ExecutorOption func(*Executor)

// WithMaxParallel bounds the number of runs actively being progressed at
// once. A value <= 0 (the default) means unbounded.
func WithMaxParallel(n int) ExecutorOption {
	return func(e *Executor) {
		if n > 0 {
			e.sem = make(chan struct{}, n)
		}
	}
}

// WithMetrics attaches a MetricsCollector.
func WithMetrics(m MetricsCollector) ExecutorOption {
	return func(e *Executor) { e.metrics = m }
}

// WithTracer attaches an OpenTelemetry tracer. Defaults to the global
// tracer provider's tracer for this package if not supplied.
func WithTracer(tracer trace.Tracer) ExecutorOption {
	return func(e *Executor) { e.tracer = tracer }
}

// WithLogger attaches a logger used to report TransientStoreErrors, which
// are fatal to the current scheduling task and otherwise have no caller
// to surface to (the task runs in its own goroutine).
func WithLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = logger }
}

// Executor advances a single run through its steps at a time, enforcing
// the state-machine contract and serializing work per run via an
// in-memory active set. It assumes a single engine instance; cross-
// process coordination is out of scope.
type Executor struct {
	store    Store
	journal  *EventJournal
	broker   *Broker
	handlers map[StepKind]Handler
	metrics  MetricsCollector
	tracer   trace.Tracer
	logger   *slog.Logger

	sem chan struct{}

	mu       sync.Mutex
	active   map[string]struct{}
	draining bool
	wg       sync.WaitGroup
}

// NewExecutor builds an Executor. handlers must provide an entry for
// every automated StepKind the workflows it runs will use (DELAY, HTTP);
// MANUAL is never dispatched through this map.
func NewExecutor(store Store, journal *EventJournal, broker *Broker, handlers map[StepKind]Handler, opts ...ExecutorOption) *Executor {
	e := &Executor{
		store:    store,
		journal:  journal,
		broker:   broker,
		handlers: handlers,
		active:   make(map[string]struct{}),
		tracer:   otel.Tracer("github.com/tombee/flowcore/pkg/workflow"),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enqueue is idempotent: if runID is already in the active set it
// returns immediately without launching a second scheduling task.
// Otherwise runID is added to the active set and a scheduling pass
// begins in a new goroutine, using ctx for the handler invocations it
// makes (not for cancelling the pass itself; runs cannot be externally
// aborted).
func (e *Executor) Enqueue(ctx context.Context, runID string) {
	e.mu.Lock()
	if e.draining {
		e.mu.Unlock()
		return
	}
	if _, inFlight := e.active[runID]; inFlight {
		e.mu.Unlock()
		return
	}
	e.active[runID] = struct{}{}
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			e.mu.Lock()
			delete(e.active, runID)
			e.mu.Unlock()
		}()

		if e.sem != nil {
			e.sem <- struct{}{}
			defer func() { <-e.sem }()
		}

		e.runPass(ctx, runID)
	}()
}

// Wait blocks until every scheduling task launched via Enqueue has
// returned. Intended for tests and graceful shutdown.
func (e *Executor) Wait() {
	e.wg.Wait()
}

// Drain stops admitting new runs and blocks until the active set empties
// or ctx expires. Once draining, Enqueue becomes a no-op — including the
// resume-enqueue inside CompleteManualStep — so a process embedding this
// engine can shut down without cutting a scheduling pass mid-step. A
// run suspended this way resumes on the next Enqueue after restart.
func (e *Executor) Drain(ctx context.Context) error {
	e.mu.Lock()
	e.draining = true
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ActiveCount reports how many runs currently have an in-flight
// scheduling task.
func (e *Executor) ActiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}

// runPass performs one scheduling pass over runID. It is re-entrant by
// design: each invocation scans the StepRun table and resumes wherever
// work remains, which is how manual-step suspension works without an
// in-memory continuation.
func (e *Executor) runPass(ctx context.Context, runID string) {
	ctx, span := e.tracer.Start(ctx, "workflow.run")
	defer span.End()

	run, err := e.store.GetRun(ctx, runID)
	if err != nil || run.Status.IsTerminal() {
		return
	}

	wf, err := e.store.GetWorkflow(ctx, run.WorkflowID)
	if err != nil {
		return
	}

	if run.Status == StatusPending {
		run, err = e.store.SetRunStatus(ctx, runID, StatusRunning)
		if err != nil {
			e.abort(runID, "setRunStatus", err)
			return
		}
		if e.metrics != nil {
			e.metrics.RecordRunStart()
		}
		if _, err := e.journal.RunStarted(ctx, runID, "Run started"); err != nil {
			e.abort(runID, "appendEvent", err)
			return
		}
		e.publish(runID)
	}

	stepRuns, err := e.store.ListStepRuns(ctx, runID)
	if err != nil {
		e.abort(runID, "listStepRuns", err)
		return
	}
	byStepID := make(map[string]*StepRun, len(stepRuns))
	for _, sr := range stepRuns {
		byStepID[sr.WorkflowStepID] = sr
	}

	for _, step := range wf.Steps {
		stepRun, ok := byStepID[step.ID]
		if !ok {
			continue
		}

		switch stepRun.Status {
		case StatusSucceeded:
			continue
		case StatusFailed:
			e.failRun(ctx, runID, "Run already failed")
			return
		}

		if step.Kind == StepManual {
			if stepRun.Status == StatusPending {
				if _, err := e.journal.StepStarted(ctx, runID, stepRun.ID,
					fmt.Sprintf("Manual step '%s' awaiting completion", step.Name)); err != nil {
					e.abort(runID, "appendEvent", err)
					return
				}
				e.publish(runID)
			}
			return
		}

		if !e.runAutomatedStep(ctx, runID, stepRun, step) {
			return
		}

		run, err = e.store.GetRun(ctx, runID)
		if err != nil {
			e.abort(runID, "getRun", err)
			return
		}
		if run.Status == StatusFailed {
			return
		}
	}

	if _, err := e.store.SetRunStatus(ctx, runID, StatusSucceeded); err != nil {
		e.abort(runID, "setRunStatus", err)
		return
	}
	if e.metrics != nil {
		e.metrics.RecordRunComplete(StatusSucceeded)
	}
	if _, err := e.journal.RunSucceeded(ctx, runID, "Run completed successfully"); err != nil {
		e.abort(runID, "appendEvent", err)
		return
	}
	e.publish(runID)
}

// abort logs a TransientStoreError encountered mid-pass. Such errors are
// fatal to the current scheduling task: the task simply stops,
// leaving the run in whatever state the last successful transaction
// captured, since there is no synchronous caller left to propagate to.
func (e *Executor) abort(runID, op string, err error) {
	e.logger.Error("scheduling task aborted by store error",
		"run_id", runID, "op", op, "error", (&flowerrors.TransientStoreError{Op: op, Cause: err}).Error())
}

// runAutomatedStep executes the DELAY/HTTP handler protocol for one
// step. It returns false if the run was terminated (failed) as a
// result, signalling the caller to stop the pass.
func (e *Executor) runAutomatedStep(ctx context.Context, runID string, stepRun *StepRun, step *WorkflowStep) bool {
	ctx, span := e.tracer.Start(ctx, "workflow.step")
	defer span.End()

	if _, err := e.store.SetStepRunStatus(ctx, stepRun.ID, StatusRunning); err != nil {
		e.abort(runID, "setStepRunStatus", err)
		return false
	}
	if _, err := e.journal.StepStarted(ctx, runID, stepRun.ID, fmt.Sprintf("Step '%s' started", step.Name)); err != nil {
		e.abort(runID, "appendEvent", err)
		return false
	}
	e.publish(runID)

	handler, ok := e.handlers[step.Kind]
	if !ok {
		e.failStep(ctx, runID, stepRun.ID, fmt.Sprintf("no handler registered for step kind %s", step.Kind))
		return false
	}

	handlerErr := handler.Handle(ctx, step)
	if handlerErr != nil {
		if e.metrics != nil {
			e.metrics.RecordStepComplete(step.Kind, StatusFailed)
		}
		e.failStep(ctx, runID, stepRun.ID, handlerErr.Error())
		return false
	}

	if _, err := e.store.SetStepRunStatus(ctx, stepRun.ID, StatusSucceeded); err != nil {
		e.abort(runID, "setStepRunStatus", err)
		return false
	}
	if e.metrics != nil {
		e.metrics.RecordStepComplete(step.Kind, StatusSucceeded)
	}
	if _, err := e.journal.StepSucceeded(ctx, runID, stepRun.ID, fmt.Sprintf("Step '%s' succeeded", step.Name)); err != nil {
		e.abort(runID, "appendEvent", err)
		return false
	}
	e.publish(runID)
	return true
}

// failStep transitions a step run and its parent run to FAILED, in that
// order, appending STEP_FAILED then RUN_FAILED per the failure branch
// of the handler protocol.
func (e *Executor) failStep(ctx context.Context, runID, stepRunID, message string) {
	if _, err := e.store.SetStepRunStatus(ctx, stepRunID, StatusFailed); err != nil {
		e.abort(runID, "setStepRunStatus", err)
		return
	}
	if _, err := e.journal.StepFailed(ctx, runID, stepRunID, message); err != nil {
		e.abort(runID, "appendEvent", err)
		return
	}
	e.failRun(ctx, runID, "Run failed")
}

// failRun transitions runID to FAILED and appends RUN_FAILED, then
// publishes. Safe to call even if the run is already terminal: it then
// does nothing, so a terminal run never changes status or gains events.
func (e *Executor) failRun(ctx context.Context, runID, message string) {
	if run, err := e.store.GetRun(ctx, runID); err == nil && run.Status.IsTerminal() {
		return
	}
	if _, err := e.store.SetRunStatus(ctx, runID, StatusFailed); err != nil {
		e.abort(runID, "setRunStatus", err)
		return
	}
	if e.metrics != nil {
		e.metrics.RecordRunComplete(StatusFailed)
	}
	if _, err := e.journal.RunFailed(ctx, runID, message); err != nil {
		e.abort(runID, "appendEvent", err)
		return
	}
	e.publish(runID)
}

func (e *Executor) publish(runID string) {
	e.broker.Publish(RunTopic(runID), Signal{})
}

// CompleteManualStep implements the manual-completion boundary entry:
// it resolves stepRunID to success or failure, records the
// corresponding events, and — on success — resumes scheduling via
// Enqueue. It is idempotent: calling it again after a StepRun has
// already reached a terminal status returns that StepRun unchanged and
// appends no further events.
func (e *Executor) CompleteManualStep(ctx context.Context, stepRunID string, success bool) (*StepRun, error) {
	stepRun, err := e.store.GetStepRun(ctx, stepRunID)
	if err != nil {
		return nil, err
	}

	if stepRun.Status.IsTerminal() {
		return stepRun, nil
	}

	runID := stepRun.WorkflowRunID

	if success {
		stepRun, err = e.store.SetStepRunStatus(ctx, stepRunID, StatusSucceeded)
		if err != nil {
			return nil, &flowerrors.TransientStoreError{Op: "setStepRunStatus", Cause: err}
		}
		if _, err := e.journal.StepSucceeded(ctx, runID, stepRunID, "Manual step completed"); err != nil {
			return nil, &flowerrors.TransientStoreError{Op: "appendEvent", Cause: err}
		}
		e.publish(runID)
		e.Enqueue(ctx, runID)
		return stepRun, nil
	}

	stepRun, err = e.store.SetStepRunStatus(ctx, stepRunID, StatusFailed)
	if err != nil {
		return nil, &flowerrors.TransientStoreError{Op: "setStepRunStatus", Cause: err}
	}
	if _, err := e.journal.StepFailed(ctx, runID, stepRunID, "Manual step failed"); err != nil {
		return nil, &flowerrors.TransientStoreError{Op: "appendEvent", Cause: err}
	}
	e.publish(runID)

	if _, err := e.store.SetRunStatus(ctx, runID, StatusFailed); err != nil {
		return nil, &flowerrors.TransientStoreError{Op: "setRunStatus", Cause: err}
	}
	if e.metrics != nil {
		e.metrics.RecordRunComplete(StatusFailed)
	}
	if _, err := e.journal.RunFailed(ctx, runID, "Run failed by manual step"); err != nil {
		return nil, &flowerrors.TransientStoreError{Op: "appendEvent", Cause: err}
	}
	e.publish(runID)

	return stepRun, nil
}
