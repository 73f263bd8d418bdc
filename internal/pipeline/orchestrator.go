package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/writing-eval/internal/common"
	"github.com/joseph-ayodele/writing-eval/internal/entity"
	"github.com/joseph-ayodele/writing-eval/internal/evaluation"
	"github.com/joseph-ayodele/writing-eval/internal/llm"
)

// KindValidation marks a trail entry whose provider answered but failed the contract.
const KindValidation llm.ErrorKind = "validation"

// Failure is one provider's entry in the fallback trail.
type Failure struct {
	Provider string
	Kind     llm.ErrorKind
	Err      error
}

func (f Failure) String() string {
	return f.Provider + ": " + f.Err.Error()
}

// AggregateError is returned when every provider failed.
type AggregateError struct {
	Failures []Failure
}

func (e *AggregateError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.String()
	}
	return fmt.Sprintf("%s (%s): %s", common.CodeAggregate, e.Summary(), strings.Join(parts, "; "))
}

func (e *AggregateError) Unwrap() error { return common.ErrAllProviders }

// Summary tells unreachable backends apart from backends that answered with garbage.
func (e *AggregateError) Summary() string {
	var reachable, unreachable int
	for _, f := range e.Failures {
		switch f.Kind {
		case llm.KindConfig, llm.KindTransport:
			unreachable++
		default:
			reachable++
		}
	}
	switch {
	case reachable == 0:
		return "all providers unreachable"
	case unreachable == 0:
		return "all providers returned invalid output"
	default:
		return "providers unreachable or returned invalid output"
	}
}

// Result is the first validated evaluation and the trail of providers that failed before it.
type Result struct {
	Evaluation *entity.Evaluation
	Provider   string
	Model      string
	Trail      []Failure
}

type Orchestrator struct {
	Logger    *slog.Logger
	Providers []llm.Provider
	Validator *evaluation.Validator
}

func NewOrchestrator(logger *slog.Logger, validator *evaluation.Validator, providers ...llm.Provider) (*Orchestrator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(providers) == 0 {
		return nil, common.NewAppError(common.CodeConfig, "at least one provider is required", common.ErrProviderConfig)
	}
	if validator == nil {
		return nil, common.NewAppError(common.CodeConfig, "validator is required", common.ErrInvalidInput)
	}
	return &Orchestrator{Logger: logger, Providers: providers, Validator: validator}, nil
}

// Evaluate tries each provider in order and returns the first payload that passes validation.
// Provider and validation failures fall through to the next provider.
func (o *Orchestrator) Evaluate(ctx context.Context, req llm.EvaluationRequest) (*Result, error) {
	start := time.Now()
	var trail []Failure

	for i, p := range o.Providers {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("evaluate %s: %w", req.AttemptID, err)
		}
		log := o.Logger.With("attempt_id", req.AttemptID, "provider", p.Name(), "position", i)

		resp, err := p.Evaluate(ctx, req)
		if err != nil {
			kind := llm.KindOf(err)
			if kind == "" {
				kind = llm.KindTransport
			}
			log.Warn("orchestrator.provider.failed", "kind", kind, "error", err)
			trail = append(trail, Failure{Provider: p.Name(), Kind: kind, Err: err})
			continue
		}

		payload, err := o.Validator.Validate(resp.Payload)
		if err != nil {
			log.Warn("orchestrator.provider.invalid", "error", err, "salvaged", resp.Salvaged)
			trail = append(trail, Failure{Provider: p.Name(), Kind: KindValidation, Err: err})
			continue
		}

		ev := payload.ToEntity(req.AttemptID)
		ev.ProviderName = p.Name()
		ev.ModelName = resp.Model
		if ev.ModelName == "" {
			ev.ModelName = p.Model()
		}
		ev.RawPayload = resp.Payload
		ev.Meta.Salvaged = resp.Salvaged
		ev.Meta.ElapsedMS = time.Since(start).Milliseconds()
		for _, f := range trail {
			ev.Meta.FailedProviders = append(ev.Meta.FailedProviders, f.String())
		}

		log.Info("orchestrator.ok",
			"model", ev.ModelName, "overall_band", ev.OverallBand,
			"fallbacks", len(trail), "elapsed_ms", ev.Meta.ElapsedMS,
		)
		return &Result{Evaluation: ev, Provider: p.Name(), Model: ev.ModelName, Trail: trail}, nil
	}

	agg := &AggregateError{Failures: trail}
	o.Logger.Error("orchestrator.exhausted", "attempt_id", req.AttemptID, "summary", agg.Summary(), "error", agg)
	return nil, agg
}

// AsAggregate extracts an *AggregateError from err.
func AsAggregate(err error) (*AggregateError, bool) {
	var agg *AggregateError
	ok := errors.As(err, &agg)
	return agg, ok
}
