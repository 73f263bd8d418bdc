package evaluation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/writing-eval/internal/common"
)

// TopTierBand is the lowest overall band a low-confidence assessment may not claim.
const TopTierBand = 8.5

const schemaURL = "evaluation.schema.json"

// Validator checks candidate payloads in two passes: JSON Schema for shape, then struct
// rules for semantics the schema cannot express.
type Validator struct {
	schema   *jsonschema.Schema
	validate *validator.Validate
	lenient  bool
	log      *slog.Logger
}

type Option func(*Validator)

// WithLenientNormalize retries a shape failure once after NormalizePayload.
func WithLenientNormalize(enabled bool) Option {
	return func(v *Validator) { v.lenient = enabled }
}

func NewValidator(logger *slog.Logger, opts ...Option) (*Validator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	b, err := json.Marshal(BuildEvaluationJSONSchema())
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(schemaURL, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.RegisterValidation("band", validateBand); err != nil {
		return nil, fmt.Errorf("register band rule: %w", err)
	}
	validate.RegisterStructValidation(confidenceRule, Payload{})
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	v := &Validator{schema: schema, validate: validate, log: logger}
	for _, o := range opts {
		o(v)
	}
	return v, nil
}

// Validate accepts raw JSON and returns the decoded payload if it satisfies the contract.
// Failures wrap common.ErrValidation.
func (v *Validator) Validate(raw []byte) (*Payload, error) {
	if err := v.checkShape(raw); err != nil {
		if !v.lenient {
			return nil, err
		}
		normalized, changed, nErr := NormalizePayload(raw)
		if nErr != nil || len(changed) == 0 {
			return nil, err
		}
		if err := v.checkShape(normalized); err != nil {
			return nil, err
		}
		v.log.Warn("evaluation.validate.lenient_normalize_applied", "changed", changed)
		raw = normalized
	}

	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, invalid("decode payload", err)
	}
	if err := v.validate.Struct(&p); err != nil {
		return nil, invalid("semantic check", flattenFieldErrors(err))
	}
	return &p, nil
}

func (v *Validator) checkShape(raw []byte) error {
	doc, err := decodeNumbers(raw)
	if err != nil {
		return invalid("decode payload", err)
	}
	if err := v.schema.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return invalid("schema check", errors.New(leafMessages(ve)))
		}
		return invalid("schema check", err)
	}
	return nil
}

// decodeNumbers keeps numbers as json.Number so multipleOf is checked on the exact decimal text.
func decodeNumbers(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after JSON value")
	}
	return doc, nil
}

func validateBand(fl validator.FieldLevel) bool {
	f := fl.Field().Float()
	if f < 0 || f > 9 {
		return false
	}
	return math.Trunc(f*2) == f*2
}

func confidenceRule(sl validator.StructLevel) {
	p := sl.Current().Interface().(Payload)
	if p.Confidence == ConfidenceLow && p.OverallBand != nil && *p.OverallBand >= TopTierBand {
		sl.ReportError(p.OverallBand, "overall_band", "OverallBand", "low_confidence_top_band", "")
	}
}

func invalid(stage string, err error) error {
	return common.NewAppError(common.CodeValidation, stage, fmt.Errorf("%w: %v", common.ErrValidation, err))
}

func leafMessages(ve *jsonschema.ValidationError) string {
	var msgs []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			msgs = append(msgs, loc+": "+e.Message)
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	return strings.Join(msgs, "; ")
}

func flattenFieldErrors(err error) error {
	var fes validator.ValidationErrors
	if !errors.As(err, &fes) {
		return err
	}
	msgs := make([]string, 0, len(fes))
	for _, fe := range fes {
		switch fe.Tag() {
		case "low_confidence_top_band":
			msgs = append(msgs, fmt.Sprintf("confidence=low is incompatible with overall_band >= %.1f", TopTierBand))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
