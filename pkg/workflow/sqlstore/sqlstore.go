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

// Package sqlstore provides a SQLite-backed workflow.Store for
// single-node deployments that need durability across restarts.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	flowerrors "github.com/tombee/flowcore/pkg/errors"
	"github.com/tombee/flowcore/pkg/workflow"
)

var _ workflow.Store = (*Store)(nil)

// Store is a SQLite storage backend.
type Store struct {
	db    *sql.DB
	clock workflow.Clock
	ids   workflow.IDGenerator
}

// Config contains SQLite connection configuration.
type Config struct {
	// Path is the database file path.
	Path string

	// WAL enables Write-Ahead Logging mode for concurrent reads.
	WAL bool
}

// New opens (creating if needed) the database at cfg.Path and runs
// migrations. clock supplies the timestamps recorded on transitions and
// events; ids mints event identifiers.
func New(cfg Config, clock workflow.Clock, ids workflow.IDGenerator) (*Store, error) {
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serializes writes, so only 1 connection for writes
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{db: db, clock: clock, ids: ids}

	if err := s.configurePragmas(ctx, cfg.WAL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure pragmas: %w", err)
	}

	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

// configurePragmas sets SQLite configuration options.
func (s *Store) configurePragmas(ctx context.Context, enableWAL bool) error {
	pragmas := []string{
		"PRAGMA foreign_keys=ON",   // Enable foreign key constraints
		"PRAGMA busy_timeout=5000", // 5 second timeout for lock contention
		"PRAGMA synchronous=NORMAL",
	}

	if enableWAL {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}

	for _, pragma := range pragmas {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	return nil
}

// migrate runs database migrations.
//
// step_runs.workflow_step_id is deliberately NOT a foreign key: a
// StepRun snapshots the step id at run-creation time, and updateWorkflow
// deletes and reinserts the workflow_steps rows, which must never
// disturb a live run's step identities.
func (s *Store) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS workflows (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS workflow_steps (
			id TEXT PRIMARY KEY,
			workflow_id TEXT NOT NULL,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			config TEXT,
			"order" INTEGER NOT NULL,
			FOREIGN KEY (workflow_id) REFERENCES workflows(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_workflow_steps_workflow ON workflow_steps(workflow_id)`,
		`CREATE TABLE IF NOT EXISTS workflow_runs (
			id TEXT PRIMARY KEY,
			workflow_id TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TEXT NOT NULL,
			started_at TEXT,
			finished_at TEXT,
			FOREIGN KEY (workflow_id) REFERENCES workflows(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_workflow_runs_workflow ON workflow_runs(workflow_id)`,
		`CREATE INDEX IF NOT EXISTS idx_workflow_runs_created_at ON workflow_runs(created_at)`,
		`CREATE TABLE IF NOT EXISTS step_runs (
			id TEXT PRIMARY KEY,
			workflow_run_id TEXT NOT NULL,
			workflow_step_id TEXT NOT NULL,
			status TEXT NOT NULL,
			position INTEGER NOT NULL,
			started_at TEXT,
			finished_at TEXT,
			FOREIGN KEY (workflow_run_id) REFERENCES workflow_runs(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_step_runs_run ON step_runs(workflow_run_id)`,
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			workflow_run_id TEXT NOT NULL,
			step_run_id TEXT,
			type TEXT NOT NULL,
			message TEXT NOT NULL,
			created_at TEXT NOT NULL,
			FOREIGN KEY (workflow_run_id) REFERENCES workflow_runs(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_run ON events(workflow_run_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// ListWorkflows returns all workflows, newest first, each with its steps.
func (s *Store) ListWorkflows(ctx context.Context) ([]*workflow.Workflow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, created_at FROM workflows ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	var workflows []*workflow.Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, wf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	for _, wf := range workflows {
		wf.Steps, err = s.listSteps(ctx, wf.ID)
		if err != nil {
			return nil, err
		}
	}
	return workflows, nil
}

// GetWorkflow returns a workflow with its steps ordered by "order".
func (s *Store) GetWorkflow(ctx context.Context, id string) (*workflow.Workflow, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, created_at FROM workflows WHERE id = ?`, id)

	wf, err := scanWorkflow(row)
	if err == sql.ErrNoRows {
		return nil, &flowerrors.NotFoundError{Resource: "workflow", ID: id}
	}
	if err != nil {
		return nil, err
	}

	wf.Steps, err = s.listSteps(ctx, id)
	if err != nil {
		return nil, err
	}
	return wf, nil
}

// CreateWorkflow persists wf and its steps in a single transaction.
func (s *Store) CreateWorkflow(ctx context.Context, wf *workflow.Workflow) error {
	if wf == nil || wf.ID == "" {
		return &flowerrors.ValidationError{Field: "id", Message: "workflow ID cannot be empty"}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM workflows WHERE id = ?`, wf.ID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check workflow: %w", err)
	}
	if exists > 0 {
		return &flowerrors.ValidationError{
			Field:      "id",
			Message:    "workflow with this ID already exists",
			Suggestion: "use a unique workflow ID or call UpdateWorkflow instead",
		}
	}

	createdAt := wf.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.clock.Now()
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO workflows (id, name, description, created_at) VALUES (?, ?, ?, ?)`,
		wf.ID, wf.Name, nullString(wf.Description), createdAt.Format(timeLayout)); err != nil {
		return fmt.Errorf("failed to create workflow: %w", err)
	}

	if err := insertSteps(ctx, tx, wf.ID, wf.Steps); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	wf.CreatedAt = createdAt
	return nil
}

// UpdateWorkflow replaces an existing workflow's name, description, and
// full step sequence in a single transaction: all existing steps are
// deleted and wf.Steps reinserted.
func (s *Store) UpdateWorkflow(ctx context.Context, wf *workflow.Workflow) error {
	if wf == nil || wf.ID == "" {
		return &flowerrors.ValidationError{Field: "id", Message: "workflow ID cannot be empty"}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE workflows SET name = ?, description = ? WHERE id = ?`,
		wf.Name, nullString(wf.Description), wf.ID)
	if err != nil {
		return fmt.Errorf("failed to update workflow: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return &flowerrors.NotFoundError{Resource: "workflow", ID: wf.ID}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM workflow_steps WHERE workflow_id = ?`, wf.ID); err != nil {
		return fmt.Errorf("failed to delete steps: %w", err)
	}
	if err := insertSteps(ctx, tx, wf.ID, wf.Steps); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// CreateRun persists run and its stepRuns in a single transaction. Fails
// with a NotFoundError if the workflow does not exist.
func (s *Store) CreateRun(ctx context.Context, run *workflow.WorkflowRun, stepRuns []*workflow.StepRun) error {
	if run == nil || run.ID == "" {
		return &flowerrors.ValidationError{Field: "id", Message: "run ID cannot be empty"}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM workflows WHERE id = ?`, run.WorkflowID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check workflow: %w", err)
	}
	if exists == 0 {
		return &flowerrors.NotFoundError{Resource: "workflow", ID: run.WorkflowID}
	}

	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.clock.Now()
	}
	status := run.Status
	if status == "" {
		status = workflow.StatusPending
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO workflow_runs (id, workflow_id, status, created_at, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.WorkflowID, string(status), createdAt.Format(timeLayout),
		formatTime(run.StartedAt), formatTime(run.FinishedAt)); err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	for i, sr := range stepRuns {
		srStatus := sr.Status
		if srStatus == "" {
			srStatus = workflow.StatusPending
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO step_runs (id, workflow_run_id, workflow_step_id, status, position, started_at, finished_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			sr.ID, sr.WorkflowRunID, sr.WorkflowStepID, string(srStatus), i,
			formatTime(sr.StartedAt), formatTime(sr.FinishedAt)); err != nil {
			return fmt.Errorf("failed to create step run: %w", err)
		}
		sr.Status = srStatus
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	run.CreatedAt = createdAt
	run.Status = status
	return nil
}

// GetRun returns a run by id.
func (s *Store) GetRun(ctx context.Context, id string) (*workflow.WorkflowRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, workflow_id, status, created_at, started_at, finished_at FROM workflow_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, &flowerrors.NotFoundError{Resource: "run", ID: id}
	}
	return run, err
}

// ListRuns returns all runs for workflowID, newest first.
func (s *Store) ListRuns(ctx context.Context, workflowID string) ([]*workflow.WorkflowRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, workflow_id, status, created_at, started_at, finished_at
		 FROM workflow_runs WHERE workflow_id = ? ORDER BY created_at DESC, rowid DESC`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []*workflow.WorkflowRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// SetRunStatus atomically transitions run to status, applying the
// startedAt/finishedAt timestamp rules inside a transaction.
func (s *Store) SetRunStatus(ctx context.Context, runID string, status workflow.Status) (*workflow.WorkflowRun, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT id, workflow_id, status, created_at, started_at, finished_at FROM workflow_runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, &flowerrors.NotFoundError{Resource: "run", ID: runID}
	}
	if err != nil {
		return nil, err
	}

	run.Status = status
	run.StartedAt, run.FinishedAt = workflow.ApplyStatusTimestamps(status, run.StartedAt, run.FinishedAt, s.clock.Now())

	if _, err := tx.ExecContext(ctx,
		`UPDATE workflow_runs SET status = ?, started_at = ?, finished_at = ? WHERE id = ?`,
		string(status), formatTime(run.StartedAt), formatTime(run.FinishedAt), runID); err != nil {
		return nil, fmt.Errorf("failed to update run status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return run, nil
}

// GetStepRun returns a step run by id.
func (s *Store) GetStepRun(ctx context.Context, id string) (*workflow.StepRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, workflow_run_id, workflow_step_id, status, started_at, finished_at FROM step_runs WHERE id = ?`, id)
	sr, err := scanStepRun(row)
	if err == sql.ErrNoRows {
		return nil, &flowerrors.NotFoundError{Resource: "stepRun", ID: id}
	}
	return sr, err
}

// ListStepRuns returns all step runs for runID, in step order.
func (s *Store) ListStepRuns(ctx context.Context, runID string) ([]*workflow.StepRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, workflow_run_id, workflow_step_id, status, started_at, finished_at
		 FROM step_runs WHERE workflow_run_id = ? ORDER BY position ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list step runs: %w", err)
	}
	defer rows.Close()

	stepRuns := []*workflow.StepRun{}
	for rows.Next() {
		sr, err := scanStepRun(rows)
		if err != nil {
			return nil, err
		}
		stepRuns = append(stepRuns, sr)
	}
	return stepRuns, rows.Err()
}

// SetStepRunStatus atomically transitions a step run to status, applying
// the startedAt/finishedAt timestamp rules inside a transaction.
func (s *Store) SetStepRunStatus(ctx context.Context, stepRunID string, status workflow.Status) (*workflow.StepRun, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT id, workflow_run_id, workflow_step_id, status, started_at, finished_at FROM step_runs WHERE id = ?`, stepRunID)
	sr, err := scanStepRun(row)
	if err == sql.ErrNoRows {
		return nil, &flowerrors.NotFoundError{Resource: "stepRun", ID: stepRunID}
	}
	if err != nil {
		return nil, err
	}

	sr.Status = status
	sr.StartedAt, sr.FinishedAt = workflow.ApplyStatusTimestamps(status, sr.StartedAt, sr.FinishedAt, s.clock.Now())

	if _, err := tx.ExecContext(ctx,
		`UPDATE step_runs SET status = ?, started_at = ?, finished_at = ? WHERE id = ?`,
		string(status), formatTime(sr.StartedAt), formatTime(sr.FinishedAt), stepRunID); err != nil {
		return nil, fmt.Errorf("failed to update step run status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return sr, nil
}

// AppendEvent inserts a new Event row. Event order relies on created_at
// with the insertion rowid as a stable tiebreak (see ListEvents).
func (s *Store) AppendEvent(ctx context.Context, runID string, stepRunID *string, eventType workflow.EventType, message string) (*workflow.Event, error) {
	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM workflow_runs WHERE id = ?`, runID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check run: %w", err)
	}
	if exists == 0 {
		return nil, &flowerrors.NotFoundError{Resource: "run", ID: runID}
	}

	event := &workflow.Event{
		ID:            s.ids.NewID(),
		WorkflowRunID: runID,
		Type:          eventType,
		Message:       message,
		CreatedAt:     s.clock.Now(),
	}
	if stepRunID != nil {
		v := *stepRunID
		event.StepRunID = &v
	}

	var srID any
	if event.StepRunID != nil {
		srID = *event.StepRunID
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO events (id, workflow_run_id, step_run_id, type, message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		event.ID, runID, srID, string(eventType), message, event.CreatedAt.Format(timeLayout)); err != nil {
		return nil, fmt.Errorf("failed to append event: %w", err)
	}
	return event, nil
}

// ListEvents returns all events for runID in creation order, rowid
// breaking created_at ties.
func (s *Store) ListEvents(ctx context.Context, runID string) ([]*workflow.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, workflow_run_id, step_run_id, type, message, created_at
		 FROM events WHERE workflow_run_id = ? ORDER BY created_at ASC, rowid ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := []*workflow.Event{}
	for rows.Next() {
		var (
			e         workflow.Event
			stepRunID sql.NullString
			eventType string
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.WorkflowRunID, &stepRunID, &eventType, &e.Message, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if stepRunID.Valid {
			v := stepRunID.String
			e.StepRunID = &v
		}
		e.Type = workflow.EventType(eventType)
		e.CreatedAt = parseTime(createdAt)
		events = append(events, &e)
	}
	return events, rows.Err()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// scanner abstracts *sql.Row and *sql.Rows for the shared scan helpers.
type scanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row scanner) (*workflow.Workflow, error) {
	var (
		wf          workflow.Workflow
		description sql.NullString
		createdAt   string
	)
	err := row.Scan(&wf.ID, &wf.Name, &description, &createdAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}
	if description.Valid {
		wf.Description = description.String
	}
	wf.CreatedAt = parseTime(createdAt)
	return &wf, nil
}

func scanRun(row scanner) (*workflow.WorkflowRun, error) {
	var (
		run                   workflow.WorkflowRun
		status                string
		createdAt             string
		startedAt, finishedAt sql.NullString
	)
	err := row.Scan(&run.ID, &run.WorkflowID, &status, &createdAt, &startedAt, &finishedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	run.Status = workflow.Status(status)
	run.CreatedAt = parseTime(createdAt)
	run.StartedAt = parseTimePtr(startedAt)
	run.FinishedAt = parseTimePtr(finishedAt)
	return &run, nil
}

func scanStepRun(row scanner) (*workflow.StepRun, error) {
	var (
		sr                    workflow.StepRun
		status                string
		startedAt, finishedAt sql.NullString
	)
	err := row.Scan(&sr.ID, &sr.WorkflowRunID, &sr.WorkflowStepID, &status, &startedAt, &finishedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan step run: %w", err)
	}
	sr.Status = workflow.Status(status)
	sr.StartedAt = parseTimePtr(startedAt)
	sr.FinishedAt = parseTimePtr(finishedAt)
	return &sr, nil
}

func (s *Store) listSteps(ctx context.Context, workflowID string) ([]*workflow.WorkflowStep, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, workflow_id, name, kind, config, "order"
		 FROM workflow_steps WHERE workflow_id = ? ORDER BY "order" ASC`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list steps: %w", err)
	}
	defer rows.Close()

	steps := []*workflow.WorkflowStep{}
	for rows.Next() {
		var (
			step   workflow.WorkflowStep
			kind   string
			config sql.NullString
		)
		if err := rows.Scan(&step.ID, &step.WorkflowID, &step.Name, &kind, &config, &step.Order); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		step.Kind = workflow.StepKind(kind)
		if config.Valid && config.String != "" {
			if err := json.Unmarshal([]byte(config.String), &step.Config); err != nil {
				return nil, fmt.Errorf("failed to unmarshal step config: %w", err)
			}
		}
		steps = append(steps, &step)
	}
	return steps, rows.Err()
}

func insertSteps(ctx context.Context, tx *sql.Tx, workflowID string, steps []*workflow.WorkflowStep) error {
	for _, step := range steps {
		var configJSON any
		if step.Config != nil {
			data, err := json.Marshal(step.Config)
			if err != nil {
				return fmt.Errorf("failed to marshal step config: %w", err)
			}
			configJSON = string(data)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO workflow_steps (id, workflow_id, name, kind, config, "order")
			 VALUES (?, ?, ?, ?, ?, ?)`,
			step.ID, workflowID, step.Name, string(step.Kind), configJSON, step.Order); err != nil {
			return fmt.Errorf("failed to insert step: %w", err)
		}
	}
	return nil
}

// timeLayout is RFC3339 with a fixed-width fractional second, so that
// lexical order of stored strings equals chronological order (Nano's
// trailing-zero trimming would sort "...00Z" after "...00.5Z").
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// formatTime converts a *time.Time to a timeLayout string or nil.
func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(timeLayout)
}

// parseTime parses a stored timestamp, returning the zero time on
// garbage (the store only ever writes values it formatted itself).
func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

// nullString returns nil if s is empty, otherwise s.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
