package submission

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/writing-eval/constants"
	"github.com/joseph-ayodele/writing-eval/internal/common"
	"github.com/joseph-ayodele/writing-eval/internal/entity"
	"github.com/joseph-ayodele/writing-eval/internal/notify"
	"github.com/joseph-ayodele/writing-eval/internal/repository"
)

const maxAnswerChars = 20000

// Service accepts finished attempts and queues them for evaluation.
type Service struct {
	attempts    repository.AttemptRepository
	answers     repository.AnswerRepository
	jobs        repository.JobRepository
	evaluations repository.EvaluationRepository
	notifier    notify.Notifier
	logger      *slog.Logger
}

func NewService(
	attempts repository.AttemptRepository,
	answers repository.AnswerRepository,
	jobs repository.JobRepository,
	evaluations repository.EvaluationRepository,
	notifier notify.Notifier,
	logger *slog.Logger,
) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		attempts:    attempts,
		answers:     answers,
		jobs:        jobs,
		evaluations: evaluations,
		notifier:    notifier,
		logger:      logger,
	}
}

// TaskSubmission is one task's answer as handed in.
type TaskSubmission struct {
	Number    int
	Answer    string
	Prompt    string
	WordLimit int
}

// SubmitRequest represents a finished attempt. AttemptID is generated when empty.
type SubmitRequest struct {
	AttemptID string
	UserID    string
	Mode      string
	Tasks     []TaskSubmission
}

// Submit stores the attempt and its answers, then queues the evaluation job.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*entity.Job, error) {
	req.AttemptID = strings.TrimSpace(req.AttemptID)
	if req.AttemptID == "" {
		req.AttemptID = uuid.New().String()
	}

	v := common.NewValidator().
		Field("attempt_id", req.AttemptID, common.Identifier, common.MaxLength(64)).
		Field("user_id", strings.TrimSpace(req.UserID), common.Required, common.Identifier, common.MaxLength(64))
	mode, ok := constants.ParseMode(req.Mode)
	if strings.TrimSpace(req.Mode) != "" && !ok {
		v.Field("mode", req.Mode, common.OneOf(constants.ModesAsStringSlice()...))
	}
	seen := map[int]bool{}
	for _, t := range req.Tasks {
		field := fmt.Sprintf("tasks[%d]", t.Number)
		v.Field(field+".number", fmt.Sprint(t.Number), common.OneOf("1", "2"))
		v.Field(field+".answer", t.Answer, common.MaxLength(maxAnswerChars))
		if seen[t.Number] {
			v.Field(field, t.Number, duplicateTask)
		}
		seen[t.Number] = true
	}
	if err := v.Err(); err != nil {
		s.logger.Error("invalid submission", "attempt_id", req.AttemptID, "error", err)
		return nil, err
	}

	attempt, err := s.attempts.Create(ctx, entity.Attempt{
		ID:     req.AttemptID,
		UserID: strings.TrimSpace(req.UserID),
		Mode:   mode,
		Status: constants.AttemptStatusSubmitted,
	})
	if err != nil {
		return nil, common.NewAppError(common.CodeDatabase, "store attempt", err)
	}
	for _, t := range req.Tasks {
		row := entity.TaskAnswer{AttemptID: attempt.ID, TaskNumber: t.Number, AnswerText: t.Answer}
		if p := strings.TrimSpace(t.Prompt); p != "" {
			row.PromptText = &p
		}
		if t.WordLimit > 0 {
			limit := t.WordLimit
			row.WordLimit = &limit
		}
		if err := s.answers.Create(ctx, row); err != nil {
			return nil, common.NewAppError(common.CodeDatabase, "store answer", err)
		}
	}

	job, err := s.Enqueue(ctx, attempt.ID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("attempt submitted", "attempt_id", attempt.ID, "user_id", attempt.UserID, "mode", attempt.Mode, "tasks", len(req.Tasks))
	return job, nil
}

func duplicateTask(field string, value any) *common.ValidationError {
	return &common.ValidationError{Field: field, Value: value, Message: "task submitted more than once"}
}

// Enqueue queues or re-arms the job for an existing attempt and wakes the workers.
func (s *Service) Enqueue(ctx context.Context, attemptID string) (*entity.Job, error) {
	if err := common.NewValidator().Field("attempt_id", attemptID, common.Required, common.Identifier).Err(); err != nil {
		return nil, err
	}
	if _, err := s.attempts.Get(ctx, attemptID); err != nil {
		return nil, fmt.Errorf("load attempt %s: %w", attemptID, err)
	}
	job, err := s.jobs.Enqueue(ctx, attemptID)
	if err != nil {
		return nil, common.NewAppError(common.CodeDatabase, "enqueue job", err)
	}
	if err := s.notifier.Notify(ctx, attemptID); err != nil {
		s.logger.Warn("wake-up notification failed", "attempt_id", attemptID, "error", err)
	}
	return job, nil
}

// StatusView is what a caller polling for a result sees. Evaluation is nil while pending.
type StatusView struct {
	Job        *entity.Job
	Evaluation *entity.Evaluation
}

// Pending reports whether no evaluation exists yet.
func (v StatusView) Pending() bool { return v.Evaluation == nil }

func (s *Service) Status(ctx context.Context, attemptID string) (*StatusView, error) {
	job, err := s.jobs.Get(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", attemptID, err)
	}
	ev, err := s.evaluations.GetByAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	return &StatusView{Job: job, Evaluation: ev}, nil
}
