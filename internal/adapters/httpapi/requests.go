package httpapi

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/mikey/ai-cost-optimizer/internal/core"
)

const maxTextLength = 1 << 20

var featureNames = []interface{}{
	string(core.FeatureIntel),
	string(core.FeatureLibrary),
	string(core.FeatureControl),
}

// CandidateRequest is the body of /api/evaluate and /api/process
type CandidateRequest struct {
	OrganizationID string         `json:"organization_id"`
	Feature        string         `json:"feature"`
	Params         map[string]any `json:"params"`
	Text           string         `json:"text"`
}

// Validate checks the candidate before it reaches the engine
func (r CandidateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.OrganizationID, validation.Required, validation.Length(1, 128)),
		validation.Field(&r.Feature, validation.Required, validation.In(featureNames...)),
		validation.Field(&r.Text, validation.Required, validation.Length(1, maxTextLength)),
	)
}

func (r CandidateRequest) toCore() *core.Request {
	return &core.Request{
		OrganizationID: r.OrganizationID,
		Feature:        core.Feature(r.Feature),
		Params:         r.Params,
		Text:           r.Text,
	}
}

// ClearRequest is the body of /api/cache/clear. An empty feature clears everything.
type ClearRequest struct {
	Feature string `json:"feature"`
}

// Validate checks the clear scope
func (r ClearRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Feature, validation.In(featureNames...)),
	)
}
