// Package ingest validates completed-session summaries, screens them for
// abuse, and folds accepted ones into the shared checkpoint statistics.
package ingest

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/rcliao/checkpoint-tracker/internal/model"
	"github.com/rcliao/checkpoint-tracker/internal/normalize"
)

// Request is the wire form of a session summary. Numeric fields are pointers
// so an absent field is reported instead of read as zero.
type Request struct {
	Category             string         `json:"category" validate:"notblank,max=200"`
	CoveredCheckpoints   []string       `json:"covered_checkpoints" validate:"max=100,dive,max=200"`
	CheckpointsTotal     *int           `json:"checkpoints_total" validate:"required,min=0,max=500"`
	TotalQAs             *int           `json:"total_qas" validate:"required,min=0,max=500"`
	TotalDecisions       *int           `json:"total_decisions" validate:"required,min=0,max=500"`
	DurationSeconds      *float64       `json:"duration_seconds" validate:"required,min=0,max=86400"`
	CoverageOrder        []CoverageItem `json:"coverage_order" validate:"max=100,dive"`
	DecisionTopics       []string       `json:"decision_topics" validate:"max=100,dive,max=200"`
	KnownCheckpointNames []string       `json:"known_checkpoint_names" validate:"max=500"`
}

// CoverageItem is one element of Request.CoverageOrder.
type CoverageItem struct {
	CheckpointName string `json:"checkpoint_name" validate:"max=200"`
	LedToDecision  *bool  `json:"led_to_decision" validate:"required"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

// Validate checks field presence and bounds.
func (r *Request) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{Problems: []string{err.Error()}}
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, describe(fe))
	}
	return &ValidationError{Problems: problems}
}

func describe(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "notblank":
		return field + " must not be blank"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		switch fe.Kind() {
		case reflect.Slice:
			return fmt.Sprintf("%s must have at most %s entries", field, fe.Param())
		case reflect.String:
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	}
	return fmt.Sprintf("%s failed %s", field, fe.Tag())
}

// Summary normalizes every name and returns the validated summary. Call
// Validate first.
func (r *Request) Summary() model.SessionSummary {
	s := model.SessionSummary{
		Category:             normalize.Key(r.Category),
		CoveredCheckpoints:   normalize.Keys(r.CoveredCheckpoints),
		DecisionTopics:       normalize.Keys(r.DecisionTopics),
		KnownCheckpointNames: normalize.Keys(r.KnownCheckpointNames),
		CoverageOrder:        make([]model.CoverageStep, 0, len(r.CoverageOrder)),
	}
	if r.CheckpointsTotal != nil {
		s.CheckpointsTotal = *r.CheckpointsTotal
	}
	if r.TotalQAs != nil {
		s.TotalQAs = *r.TotalQAs
	}
	if r.TotalDecisions != nil {
		s.TotalDecisions = *r.TotalDecisions
	}
	if r.DurationSeconds != nil {
		s.DurationSeconds = *r.DurationSeconds
	}
	for _, item := range r.CoverageOrder {
		name := normalize.Key(item.CheckpointName)
		if name == "" {
			continue
		}
		s.CoverageOrder = append(s.CoverageOrder, model.CoverageStep{
			CheckpointName: name,
			LedToDecision:  item.LedToDecision != nil && *item.LedToDecision,
		})
	}
	return s
}

// RequestFromSummary converts an engine-produced summary to its wire form so
// it passes through the same checks as external payloads.
func RequestFromSummary(s model.SessionSummary) *Request {
	total, qas, decisions, duration := s.CheckpointsTotal, s.TotalQAs, s.TotalDecisions, s.DurationSeconds
	r := &Request{
		Category:             s.Category,
		CoveredCheckpoints:   s.CoveredCheckpoints,
		CheckpointsTotal:     &total,
		TotalQAs:             &qas,
		TotalDecisions:       &decisions,
		DurationSeconds:      &duration,
		CoverageOrder:        make([]CoverageItem, 0, len(s.CoverageOrder)),
		DecisionTopics:       s.DecisionTopics,
		KnownCheckpointNames: s.KnownCheckpointNames,
	}
	for _, step := range s.CoverageOrder {
		led := step.LedToDecision
		r.CoverageOrder = append(r.CoverageOrder, CoverageItem{
			CheckpointName: step.CheckpointName,
			LedToDecision:  &led,
		})
	}
	return r
}
