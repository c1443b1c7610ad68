// Copyright (c) 2026 google-sheets authors
// google-sheets - service and deployment tooling
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"fmt"
	"os/user"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/uptrace/bun"
)

// AuditLogModel maps the audit_log table.
type AuditLogModel struct {
	bun.BaseModel `bun:"table:audit_log"`
	ID            int64     `bun:"id,pk,autoincrement"`
	Timestamp     time.Time `bun:"timestamp,notnull"`
	Username      string    `bun:"username,notnull"`
	Action        string    `bun:"action,notnull"`
	Details       string    `bun:"details,notnull"`
	CorrelationID string    `bun:"correlation_id,notnull"`
}

// DeployRunModel maps the deploy_runs table.
type DeployRunModel struct {
	bun.BaseModel `bun:"table:deploy_runs"`
	ID            string    `bun:"id,pk"`
	Host          string    `bun:"host,notnull"`
	Image         string    `bun:"image,notnull"`
	StartedAt     time.Time `bun:"started_at,notnull"`
	FinishedAt    time.Time `bun:"finished_at,notnull"`
	Status        string    `bun:"status,notnull"`
	FailedStep    string    `bun:"failed_step,notnull"`
	Steps         string    `bun:"steps,notnull"`
}

// StepRecord is one entry of DeployRunModel.Steps.
type StepRecord struct {
	Name     string        `json:"name"`
	Status   string        `json:"status"`
	Duration time.Duration `json:"duration_ns"`
	Error    string        `json:"error,omitempty"`
}

// AuditStore writes and reads the audit trail.
type AuditStore struct {
	bun *bun.DB
	// now and username are replaced in tests.
	now      func() time.Time
	username func() string
}

// NewAuditStore returns a store over d.
func NewAuditStore(d *DB) *AuditStore {
	return newAuditStore(d.Bun)
}

func newAuditStore(b *bun.DB) *AuditStore {
	return &AuditStore{bun: b, now: time.Now, username: currentUsername}
}

// currentUsername returns the OS user without a Windows domain prefix.
func currentUsername() string {
	u, err := user.Current()
	if err != nil {
		return "unknown"
	}
	if parts := strings.Split(u.Username, `\`); len(parts) > 1 {
		return parts[1]
	}
	return u.Username
}

// LogAction records action with free-form details.
func (s *AuditStore) LogAction(ctx context.Context, action, details string) error {
	return s.LogCorrelated(ctx, "", action, details)
}

// LogCorrelated records action tied to a request or deploy run id.
func (s *AuditStore) LogCorrelated(ctx context.Context, correlationID, action, details string) error {
	entry := &AuditLogModel{
		Timestamp:     s.now().UTC(),
		Username:      s.username(),
		Action:        action,
		Details:       details,
		CorrelationID: correlationID,
	}
	if _, err := s.bun.NewInsert().Model(entry).Returning("NULL").Exec(ctx); err != nil {
		return fmt.Errorf("write audit log: %w", MapDBError(err))
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *AuditStore) Recent(ctx context.Context, limit int) ([]AuditLogModel, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []AuditLogModel
	if err := s.bun.NewSelect().Model(&out).OrderExpr("id DESC").Limit(limit).Scan(ctx); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}
	return out, nil
}

// RecordDeploy stores a finished deploy run and its steps.
func (s *AuditStore) RecordDeploy(ctx context.Context, run DeployRunModel, steps []StepRecord) error {
	if steps == nil {
		steps = []StepRecord{}
	}
	data, err := json.Marshal(steps)
	if err != nil {
		return fmt.Errorf("encode deploy steps: %w", err)
	}
	run.Steps = string(data)
	if _, err := s.bun.NewInsert().Model(&run).Returning("NULL").Exec(ctx); err != nil {
		return fmt.Errorf("record deploy run %s: %w", run.ID, MapDBError(err))
	}
	return nil
}

// RecentDeploys returns up to limit deploy runs, newest first, with their
// steps decoded.
func (s *AuditStore) RecentDeploys(ctx context.Context, limit int) ([]DeployRunModel, [][]StepRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	var runs []DeployRunModel
	if err := s.bun.NewSelect().Model(&runs).OrderExpr("started_at DESC").Limit(limit).Scan(ctx); err != nil {
		return nil, nil, fmt.Errorf("read deploy runs: %w", err)
	}
	steps := make([][]StepRecord, len(runs))
	for i, r := range runs {
		if err := json.Unmarshal([]byte(r.Steps), &steps[i]); err != nil {
			return nil, nil, fmt.Errorf("decode steps of deploy run %s: %w", r.ID, err)
		}
	}
	return runs, steps, nil
}
