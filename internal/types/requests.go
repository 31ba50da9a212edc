package types

import "github.com/go-playground/validator/v10"

// SubmitRunRequest is the payload for creating a new run.
type SubmitRunRequest struct {
	HypothesisID string `json:"hypothesis_id" validate:"required,uuid4"`
}

// SubmitValidationRequest is the payload for recording a verdict on a run.
type SubmitValidationRequest struct {
	Kind            string `json:"kind" validate:"required,oneof=auto human"`
	Verdict         string `json:"verdict" validate:"required,oneof=pass fail"`
	Notes           string `json:"notes" validate:"max=4000"`
	ExpectedVersion int64  `json:"expected_version" validate:"min=0"`
}

// Validate validates the SubmitRunRequest using the validator.
func (r *SubmitRunRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// Validate validates the SubmitValidationRequest using the validator.
func (r *SubmitValidationRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}
