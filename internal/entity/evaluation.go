package entity

import (
	"encoding/json"
	"time"
)

// CriteriaBands holds the four analytic criteria for one task.
type CriteriaBands struct {
	TaskResponse      *float64 `json:"task_response"`
	CoherenceCohesion *float64 `json:"coherence_cohesion"`
	LexicalResource   *float64 `json:"lexical_resource"`
	GrammarAccuracy   *float64 `json:"grammar_accuracy"`
}

// Notes is the structured free-text feedback of an evaluation.
type Notes struct {
	Strengths          []string `json:"strengths"`
	Weaknesses         []string `json:"weaknesses"`
	ImprovementActions []string `json:"improvement_actions"`
}

// EvaluationMeta carries provenance stored alongside the grade.
type EvaluationMeta struct {
	EvaluationVersion string   `json:"evaluation_version"`
	Confidence        string   `json:"confidence"`
	Salvaged          bool     `json:"salvaged"`
	FailedProviders   []string `json:"failed_providers,omitempty"`
	ElapsedMS         int64    `json:"elapsed_ms"`
}

// Evaluation is the persisted result for one attempt.
type Evaluation struct {
	AttemptID     string          `json:"attempt_id"`
	OverallBand   float64         `json:"overall_band"`
	Task1Band     *float64        `json:"task1_band,omitempty"`
	Task2Band     float64         `json:"task2_band"`
	Task1Criteria CriteriaBands   `json:"task1_criteria"`
	Task2Criteria CriteriaBands   `json:"task2_criteria"`
	Task1Verdict  string          `json:"task1_verdict"`
	Task2Verdict  string          `json:"task2_verdict"`
	Notes         Notes           `json:"notes"`
	Warnings      []string        `json:"warnings"`
	NextSteps     []string        `json:"next_steps"`
	ProviderName  string          `json:"provider_name"`
	ModelName     string          `json:"model_name"`
	Meta          EvaluationMeta  `json:"meta"`
	RawPayload    json.RawMessage `json:"raw_payload,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}
