// Package types holds the data structures shared across the portal.
// Keeping them in one place prevents import cycles: the widget, the
// idcheck client, storage and the HTTP handlers all import types without
// depending on each other.
package types

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// FormInput is what the user types and uploads on the validation form.
//
// The validate:"required" tags are checked by go-playground/validator
// before anything is sent over the network. A nil Image means no file
// was chosen.
type FormInput struct {
	Name       string `json:"name"       validate:"required"`
	University string `json:"university" validate:"required"`
	Image      *Image `json:"-"          validate:"required"`
}

// Image is an uploaded ID card picture.
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Fields are the raw strings the external service read off the card.
type Fields struct {
	Name       string `json:"Name"`
	University string `json:"University"`
	Expiration string `json:"Expiration"`
}

// SubmissionResult is the JSON document returned by the validation service.
//
// Example:
//
//	{
//	  "is_valid_card": true,
//	  "name_match": 87,
//	  "university_match": 92.5,
//	  "is_expired": false,
//	  "fields": { "Name": "JOHN DOE", "University": "STATE UNIVERSITY", "Expiration": "05/31/2027" }
//	}
type SubmissionResult struct {
	IsValidCard     bool   `json:"is_valid_card"`
	NameMatch       Score  `json:"name_match"`
	UniversityMatch Score  `json:"university_match"`
	IsExpired       bool   `json:"is_expired"`
	Fields          Fields `json:"fields"`
}

// ValidLabel renders IsValidCard the way the results panel shows it.
func (r SubmissionResult) ValidLabel() string {
	if r.IsValidCard {
		return "Yes"
	}
	return "No"
}

// ExpirationLabel renders IsExpired the way the results panel shows it.
func (r SubmissionResult) ExpirationLabel() string {
	if r.IsExpired {
		return "Expired"
	}
	return "Valid"
}

// Model selects which external inference backend processes the image.
// It only changes the destination endpoint, never the payload.
type Model int

const (
	ModelYOLO Model = 1
	ModelNLP  Model = 2
)

var ErrInvalidModel = errors.New("invalid model selection")

// ParseModel accepts "1"/"2" as well as "yolo"/"nlp".
func ParseModel(s string) (Model, error) {
	switch s {
	case "1", "yolo", "YOLO":
		return ModelYOLO, nil
	case "2", "nlp", "NLP":
		return ModelNLP, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidModel, s)
}

func (m Model) Valid() bool {
	return m == ModelYOLO || m == ModelNLP
}

func (m Model) String() string {
	switch m {
	case ModelYOLO:
		return "yolo"
	case ModelNLP:
		return "nlp"
	}
	return strconv.Itoa(int(m))
}

// Variant is the deployment flavour of the portal.
//
//	single: one fixed endpoint, no model toggle
//	dual:   YOLO/NLP toggle, loading indicator, detected fields block
type Variant string

const (
	VariantSingle Variant = "single"
	VariantDual   Variant = "dual"
)

// Outcome of a settled network submission.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
)

// Submission is one entry of the submission history.
type Submission struct {
	ID         int64             `json:"id"`
	Name       string            `json:"name"`
	University string            `json:"university"`
	ImageName  string            `json:"image_name"`
	Model      Model             `json:"model,omitempty"`
	Endpoint   string            `json:"endpoint"`
	Outcome    string            `json:"outcome"`
	Result     *SubmissionResult `json:"result,omitempty"`
	Error      string            `json:"error,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}
