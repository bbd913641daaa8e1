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

package sqlstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/flowcore/internal/idgen"
	"github.com/tombee/flowcore/pkg/workflow"
)

// Wires the full engine over the SQLite store: pause at a manual gate,
// resume, and check the event log survives in causal order.
func TestEngine_OverSQLiteStore(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	journal := workflow.NewEventJournal(store)
	broker := workflow.NewBroker()
	executor := workflow.NewExecutor(store, journal, broker, map[workflow.StepKind]workflow.Handler{
		workflow.StepDelay: workflow.DelayHandler{},
	})
	engine := workflow.NewEngine(store, journal, broker, executor, &idgen.Sequential{Prefix: "id"})

	wf, err := engine.CreateWorkflow(ctx, "release", "", []*workflow.WorkflowStep{
		{Name: "soak", Kind: workflow.StepDelay, Order: 0, Config: map[string]any{"seconds": float64(0)}},
		{Name: "sign-off", Kind: workflow.StepManual, Order: 1},
	})
	require.NoError(t, err)

	run, err := engine.StartRun(ctx, wf.ID)
	require.NoError(t, err)

	// Wait for the run to suspend at the manual gate.
	var manual *workflow.StepRun
	require.Eventually(t, func() bool {
		stepRuns, err := store.ListStepRuns(ctx, run.ID)
		require.NoError(t, err)
		if stepRuns[0].Status != workflow.StatusSucceeded {
			return false
		}
		events, err := store.ListEvents(ctx, run.ID)
		require.NoError(t, err)
		if len(events) == 0 || events[len(events)-1].Type != workflow.EventStepStarted {
			return false
		}
		manual = stepRuns[1]
		return true
	}, 2*time.Second, time.Millisecond)

	sr, err := engine.CompleteManualStep(ctx, manual.ID, true)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusSucceeded, sr.Status)

	require.Eventually(t, func() bool {
		r, err := store.GetRun(ctx, run.ID)
		require.NoError(t, err)
		return r.Status.IsTerminal()
	}, 2*time.Second, time.Millisecond)

	detail, err := engine.Run(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusSucceeded, detail.Run.Status)

	types := make([]workflow.EventType, len(detail.Events))
	for i, e := range detail.Events {
		types[i] = e.Type
	}
	assert.Equal(t, []workflow.EventType{
		workflow.EventRunStarted, // "Run enqueued", from StartRun
		workflow.EventRunStarted, // Executor's own RUN_STARTED on PENDING->RUNNING
		workflow.EventStepStarted, workflow.EventStepSucceeded, // soak
		workflow.EventStepStarted, workflow.EventStepSucceeded, // sign-off: awaiting, then completed
		workflow.EventRunSucceeded,
	}, types)
}
