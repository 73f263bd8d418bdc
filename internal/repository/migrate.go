package repository

import (
	"context"
	"fmt"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// Table names.
const (
	JobsTable        = "evaluation_jobs"
	AttemptsTable    = "attempts"
	AnswersTable     = "task_answers"
	EvaluationsTable = "evaluations"
)

const textSize = 2147483647

// Tables describes the pipeline schema. A fresh set is built on every call because the
// migrator links columns and indexes in place.
func Tables() []*schema.Table {
	// evaluation_jobs
	jobsColumns := []*schema.Column{
		{Name: "attempt_id", Type: field.TypeString, Size: 64},
		{Name: "status", Type: field.TypeString, Size: 16, Default: "queued"},
		{Name: "attempt_count", Type: field.TypeInt, Default: 0},
		{Name: "locked_at", Type: field.TypeTime, Nullable: true},
		{Name: "last_error", Type: field.TypeString, Size: textSize, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	jobsTable := &schema.Table{
		Name:       JobsTable,
		Columns:    jobsColumns,
		PrimaryKey: []*schema.Column{jobsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "evaluationjob_status_created_at", Unique: false, Columns: []*schema.Column{jobsColumns[1], jobsColumns[5]}},
		},
	}

	// attempts
	attemptsColumns := []*schema.Column{
		{Name: "id", Type: field.TypeString, Size: 64},
		{Name: "user_id", Type: field.TypeString, Size: 64},
		{Name: "mode", Type: field.TypeString, Size: 16},
		{Name: "status", Type: field.TypeString, Size: 16},
		{Name: "evaluated_at", Type: field.TypeTime, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
	}
	attemptsTable := &schema.Table{
		Name:       AttemptsTable,
		Columns:    attemptsColumns,
		PrimaryKey: []*schema.Column{attemptsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "attempt_user_id", Unique: false, Columns: []*schema.Column{attemptsColumns[1]}},
		},
	}

	// task_answers
	answersColumns := []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "attempt_id", Type: field.TypeString, Size: 64},
		{Name: "task_number", Type: field.TypeInt},
		{Name: "answer_text", Type: field.TypeString, Size: textSize},
		{Name: "prompt_text", Type: field.TypeString, Size: textSize, Nullable: true},
		{Name: "word_limit", Type: field.TypeInt, Nullable: true},
	}
	answersTable := &schema.Table{
		Name:       AnswersTable,
		Columns:    answersColumns,
		PrimaryKey: []*schema.Column{answersColumns[0]},
		Indexes: []*schema.Index{
			{Name: "taskanswer_attempt_id_task_number", Unique: true, Columns: []*schema.Column{answersColumns[1], answersColumns[2]}},
		},
	}

	// evaluations
	evaluationsColumns := []*schema.Column{
		{Name: "attempt_id", Type: field.TypeString, Size: 64},
		{Name: "overall_band", Type: field.TypeFloat64},
		{Name: "task1_band", Type: field.TypeFloat64, Nullable: true},
		{Name: "task2_band", Type: field.TypeFloat64},
		{Name: "task1_criteria", Type: field.TypeString, Size: textSize},
		{Name: "task2_criteria", Type: field.TypeString, Size: textSize},
		{Name: "task1_verdict", Type: field.TypeString, Size: textSize},
		{Name: "task2_verdict", Type: field.TypeString, Size: textSize},
		{Name: "notes", Type: field.TypeString, Size: textSize},
		{Name: "warnings", Type: field.TypeString, Size: textSize},
		{Name: "next_steps", Type: field.TypeString, Size: textSize},
		{Name: "provider_name", Type: field.TypeString, Size: 64},
		{Name: "model_name", Type: field.TypeString, Size: 128},
		{Name: "meta", Type: field.TypeString, Size: textSize},
		{Name: "raw_payload", Type: field.TypeString, Size: textSize, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
	}
	evaluationsTable := &schema.Table{
		Name:       EvaluationsTable,
		Columns:    evaluationsColumns,
		PrimaryKey: []*schema.Column{evaluationsColumns[0]},
	}

	return []*schema.Table{jobsTable, attemptsTable, answersTable, evaluationsTable}
}

// Migrate creates or updates the pipeline tables.
func Migrate(ctx context.Context, drv *entsql.Driver, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	m, err := schema.NewMigrate(drv, schema.WithForeignKeys(false))
	if err != nil {
		logger.Error("migrate.init_failed", "error", err)
		return fmt.Errorf("init migrate: %w", err)
	}
	if err := m.Create(ctx, Tables()...); err != nil {
		logger.Error("migrate.create_failed", "error", err)
		return fmt.Errorf("create schema: %w", err)
	}
	logger.Info("migrate.ok", "dialect", drv.Dialect(), "tables", len(Tables()))
	return nil
}
