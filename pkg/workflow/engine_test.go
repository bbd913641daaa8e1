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

package workflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/flowcore/internal/clock"
	"github.com/tombee/flowcore/internal/idgen"
	"github.com/tombee/flowcore/pkg/workflow"
)

func newEngine(t *testing.T, handlers map[workflow.StepKind]workflow.Handler) *workflow.Engine {
	t.Helper()
	store := workflow.NewMemoryStore(clock.Real{})
	journal := workflow.NewEventJournal(store)
	broker := workflow.NewBroker()
	executor := workflow.NewExecutor(store, journal, broker, handlers)
	return workflow.NewEngine(store, journal, broker, executor, &idgen.Sequential{Prefix: "eng"})
}

func TestEngine_CreateWorkflowAssignsIDsAndWorkflowID(t *testing.T) {
	e := newEngine(t, nil)
	ctx := context.Background()

	wf, err := e.CreateWorkflow(ctx, "onboarding", "sends a welcome email", []*workflow.WorkflowStep{
		{Name: "wait", Kind: workflow.StepDelay, Order: 0, Config: map[string]any{"seconds": float64(1)}},
		{Name: "notify", Kind: workflow.StepManual, Order: 1},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, wf.ID)
	require.Len(t, wf.Steps, 2)
	for _, s := range wf.Steps {
		assert.NotEmpty(t, s.ID)
		assert.Equal(t, wf.ID, s.WorkflowID)
	}

	fetched, err := e.Workflow(ctx, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, wf.Name, fetched.Name)
	assert.Len(t, fetched.Steps, 2)
}

func TestEngine_UpdateWorkflowPreservesUnsetFields(t *testing.T) {
	e := newEngine(t, nil)
	ctx := context.Background()

	wf, err := e.CreateWorkflow(ctx, "original", "original description", []*workflow.WorkflowStep{
		{Name: "step-a", Kind: workflow.StepManual, Order: 0},
	})
	require.NoError(t, err)

	updated, err := e.UpdateWorkflow(ctx, wf.ID, "", "", []*workflow.WorkflowStep{
		{Name: "step-b", Kind: workflow.StepManual, Order: 0},
		{Name: "step-c", Kind: workflow.StepManual, Order: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, "original", updated.Name)
	assert.Equal(t, "original description", updated.Description)
	require.Len(t, updated.Steps, 2)
	assert.Equal(t, "step-b", updated.Steps[0].Name)
}

func TestEngine_UpdateUnknownWorkflowFails(t *testing.T) {
	e := newEngine(t, nil)
	_, err := e.UpdateWorkflow(context.Background(), "does-not-exist", "x", "", nil)
	assert.Error(t, err)
}

func TestEngine_StartRunAppendsRunEnqueuedBeforeEnqueueing(t *testing.T) {
	e := newEngine(t, map[workflow.StepKind]workflow.Handler{
		workflow.StepDelay: workflow.DelayHandler{},
	})
	ctx := context.Background()

	wf, err := e.CreateWorkflow(ctx, "wf", "", []*workflow.WorkflowStep{
		{Name: "wait", Kind: workflow.StepDelay, Order: 0, Config: map[string]any{"seconds": float64(0)}},
	})
	require.NoError(t, err)

	run, err := e.StartRun(ctx, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, wf.ID, run.WorkflowID)

	deadline := time.Now().Add(2 * time.Second)
	var detail *workflow.RunDetail
	for time.Now().Before(deadline) {
		detail, err = e.Run(ctx, run.ID)
		require.NoError(t, err)
		if detail.Run.Status.IsTerminal() {
			break
		}
		time.Sleep(time.Millisecond)
	}
	require.NotNil(t, detail)
	assert.Equal(t, workflow.StatusSucceeded, detail.Run.Status)
	require.NotEmpty(t, detail.Events)
	assert.Equal(t, workflow.EventRunStarted, detail.Events[0].Type)
	assert.Equal(t, "Run enqueued", detail.Events[0].Message)
}

func TestEngine_StartRunUnknownWorkflowFails(t *testing.T) {
	e := newEngine(t, nil)
	_, err := e.StartRun(context.Background(), "missing")
	assert.Error(t, err)
}

func TestEngine_CompleteManualStepResumesRun(t *testing.T) {
	e := newEngine(t, map[workflow.StepKind]workflow.Handler{
		workflow.StepDelay: workflow.DelayHandler{},
	})
	ctx := context.Background()

	wf, err := e.CreateWorkflow(ctx, "approval", "", []*workflow.WorkflowStep{
		{Name: "approve", Kind: workflow.StepManual, Order: 0},
		{Name: "after", Kind: workflow.StepDelay, Order: 1, Config: map[string]any{"seconds": float64(0)}},
	})
	require.NoError(t, err)

	run, err := e.StartRun(ctx, wf.ID)
	require.NoError(t, err)

	var stepRunID string
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		detail, err := e.Run(ctx, run.ID)
		require.NoError(t, err)
		if detail.Run.Status == workflow.StatusRunning && detail.StepRuns[0].Status == workflow.StatusPending {
			for _, ev := range detail.Events {
				if ev.Type == workflow.EventStepStarted && ev.StepRunID != nil && *ev.StepRunID == detail.StepRuns[0].ID {
					stepRunID = detail.StepRuns[0].ID
				}
			}
			if stepRunID != "" {
				break
			}
		}
		time.Sleep(time.Millisecond)
	}
	require.NotEmpty(t, stepRunID)

	sr, err := e.CompleteManualStep(ctx, stepRunID, true)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusSucceeded, sr.Status)

	for time.Now().Before(deadline) {
		detail, err := e.Run(ctx, run.ID)
		require.NoError(t, err)
		if detail.Run.Status.IsTerminal() {
			assert.Equal(t, workflow.StatusSucceeded, detail.Run.Status)
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("run never reached a terminal state")
}

func TestEngine_RunUpdatedDeliversInitialSnapshotAndTerminalUpdate(t *testing.T) {
	e := newEngine(t, map[workflow.StepKind]workflow.Handler{
		workflow.StepDelay: workflow.DelayHandler{},
	})
	ctx := context.Background()

	wf, err := e.CreateWorkflow(ctx, "wf", "", []*workflow.WorkflowStep{
		{Name: "wait", Kind: workflow.StepDelay, Order: 0, Config: map[string]any{"seconds": float64(0)}},
	})
	require.NoError(t, err)

	run, err := e.StartRun(ctx, wf.ID)
	require.NoError(t, err)

	snapshots, unsubscribe := e.RunUpdated(ctx, run.ID)
	defer unsubscribe()

	sawTerminal := false
	deadline := time.After(2 * time.Second)
	for !sawTerminal {
		select {
		case snap, ok := <-snapshots:
			if !ok {
				t.Fatal("snapshot channel closed before terminal update")
			}
			if snap.Status.IsTerminal() {
				sawTerminal = true
			}
		case <-deadline:
			t.Fatal("timed out waiting for terminal snapshot")
		}
	}
	assert.True(t, sawTerminal)
}
