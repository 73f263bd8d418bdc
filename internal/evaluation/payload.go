package evaluation

import (
	"github.com/joseph-ayodele/writing-eval/internal/entity"
)

// Criteria holds the four analytic bands for one task.
type Criteria struct {
	TaskResponse      *float64 `json:"task_response" validate:"omitempty,band"`
	CoherenceCohesion *float64 `json:"coherence_cohesion" validate:"omitempty,band"`
	LexicalResource   *float64 `json:"lexical_resource" validate:"omitempty,band"`
	GrammarAccuracy   *float64 `json:"grammar_accuracy" validate:"omitempty,band"`
}

// Payload is a candidate evaluation as returned by a provider.
type Payload struct {
	EvaluationVersion  string    `json:"evaluation_version" validate:"required,min=3"`
	Confidence         string    `json:"confidence" validate:"required,oneof=low medium high"`
	OverallBand        *float64  `json:"overall_band" validate:"required,band"`
	Task1Band          *float64  `json:"task1_band" validate:"omitempty,band"`
	Task2Band          *float64  `json:"task2_band" validate:"required,band"`
	Task1Criteria      *Criteria `json:"task1_criteria"`
	Task2Criteria      Criteria  `json:"task2_criteria" validate:"required"`
	Task1Verdict       *string   `json:"task1_verdict"`
	Task2Verdict       string    `json:"task2_verdict" validate:"required"`
	Strengths          []string  `json:"strengths" validate:"min=1,dive,required"`
	Weaknesses         []string  `json:"weaknesses" validate:"min=1,dive,required"`
	ImprovementActions []string  `json:"improvement_actions" validate:"min=1,dive,required"`
	Warnings           []string  `json:"warnings" validate:"dive,required"`
	NextSteps          []string  `json:"next_steps" validate:"dive,required"`
}

// ToEntity maps a validated payload onto the persisted record. Provider fields and meta
// beyond version and confidence are filled by the caller.
func (p *Payload) ToEntity(attemptID string) *entity.Evaluation {
	ev := &entity.Evaluation{
		AttemptID:     attemptID,
		Task1Band:     p.Task1Band,
		Task2Criteria: p.Task2Criteria.toEntity(),
		Task2Verdict:  p.Task2Verdict,
		Notes: entity.Notes{
			Strengths:          p.Strengths,
			Weaknesses:         p.Weaknesses,
			ImprovementActions: p.ImprovementActions,
		},
		Warnings:  p.Warnings,
		NextSteps: p.NextSteps,
		Meta: entity.EvaluationMeta{
			EvaluationVersion: p.EvaluationVersion,
			Confidence:        p.Confidence,
		},
	}
	if p.OverallBand != nil {
		ev.OverallBand = *p.OverallBand
	}
	if p.Task2Band != nil {
		ev.Task2Band = *p.Task2Band
	}
	if p.Task1Criteria != nil {
		ev.Task1Criteria = p.Task1Criteria.toEntity()
	}
	if p.Task1Verdict != nil {
		ev.Task1Verdict = *p.Task1Verdict
	}
	return ev
}

func (c Criteria) toEntity() entity.CriteriaBands {
	return entity.CriteriaBands{
		TaskResponse:      c.TaskResponse,
		CoherenceCohesion: c.CoherenceCohesion,
		LexicalResource:   c.LexicalResource,
		GrammarAccuracy:   c.GrammarAccuracy,
	}
}
