package types

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSubmitRunRequest_Validate(t *testing.T) {
	valid := &SubmitRunRequest{HypothesisID: uuid.New().String()}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name string
		req  SubmitRunRequest
	}{
		{"missing hypothesis id", SubmitRunRequest{}},
		{"not a uuid", SubmitRunRequest{HypothesisID: "abc"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.req.Validate())
		})
	}
}

func TestSubmitValidationRequest_Validate(t *testing.T) {
	valid := &SubmitValidationRequest{
		Kind:            ValidationKindHuman,
		Verdict:         VerdictPass,
		Notes:           "looks sound",
		ExpectedVersion: 2,
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name string
		req  SubmitValidationRequest
	}{
		{"missing kind", SubmitValidationRequest{Verdict: VerdictPass}},
		{"unknown kind", SubmitValidationRequest{Kind: "manual", Verdict: VerdictPass}},
		{"missing verdict", SubmitValidationRequest{Kind: ValidationKindAuto}},
		{"unknown verdict", SubmitValidationRequest{Kind: ValidationKindAuto, Verdict: "maybe"}},
		{"notes too long", SubmitValidationRequest{Kind: ValidationKindHuman, Verdict: VerdictFail, Notes: strings.Repeat("x", 4001)}},
		{"negative version", SubmitValidationRequest{Kind: ValidationKindHuman, Verdict: VerdictPass, ExpectedVersion: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.req.Validate())
		})
	}
}
