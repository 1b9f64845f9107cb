package validator

import (
	"fmt"

	"github.com/SAP-F-2025/hirescribe-integrity/internal/models"
)

// MaxWritingScore is the top of the AI writing scale.
const MaxWritingScore = 5.0

// ValidateSubmit checks rules that span several fields of a submit request.
func (v *Validator) ValidateSubmit(req *models.SubmitRequest, prompts []models.CompletedPrompt) error {
	if err := v.Validate(req); err != nil {
		return err
	}

	var errs ValidationErrors
	answered := make(map[string]struct{}, len(prompts))
	for _, p := range prompts {
		answered[p.PromptID] = struct{}{}
	}
	for i, s := range req.WritingScores {
		if s.Score < 0 || s.Score > MaxWritingScore {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("writing_scores[%d].score", i),
				Message: fmt.Sprintf("must be between 0 and %.0f", MaxWritingScore),
				Rule:    "writing_score_range",
			})
		}
		if _, ok := answered[s.PromptID]; !ok {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("writing_scores[%d].prompt_id", i),
				Message: "does not match a completed prompt",
				Rule:    "writing_score_prompt",
			})
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ValidateCompletedPrompt checks a prompt against those already answered.
func (v *Validator) ValidateCompletedPrompt(p *models.CompletedPrompt, existing []models.CompletedPrompt) error {
	if err := v.Validate(p); err != nil {
		return err
	}
	for _, e := range existing {
		if e.PromptID == p.PromptID {
			return ValidationErrors{{
				Field:   "prompt_id",
				Message: "has already been completed",
				Rule:    "unique_prompt",
			}}
		}
	}
	return nil
}
