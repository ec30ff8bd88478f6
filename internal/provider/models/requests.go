package models

import (
	"strings"

	dErrors "mindlink/pkg/domain-errors"
)

const (
	maxNameLength        = 100
	maxDescriptionLength = 1000
	maxExperienceLength  = 1000
)

// SubmitApplicationRequest is the command for submitting a provider application.
type SubmitApplicationRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Experience  string `json:"experience"`
}

func (r *SubmitApplicationRequest) Normalize() {
	if r == nil {
		return
	}
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
	r.Experience = strings.TrimSpace(r.Experience)
}

func (r *SubmitApplicationRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if r.Description == "" {
		return dErrors.New(dErrors.CodeValidation, "description is required")
	}
	if r.Experience == "" {
		return dErrors.New(dErrors.CodeValidation, "experience is required")
	}
	if len(r.Name) > maxNameLength {
		return dErrors.New(dErrors.CodeValidation, "name must be 100 characters or less")
	}
	if len(r.Description) > maxDescriptionLength {
		return dErrors.New(dErrors.CodeValidation, "description must be 1000 characters or less")
	}
	if len(r.Experience) > maxExperienceLength {
		return dErrors.New(dErrors.CodeValidation, "experience must be 1000 characters or less")
	}
	return nil
}
