package models

import "regexp"

var adminNumberRE = regexp.MustCompile(`\d`)

// UpdateSettingsRequest represents the request body for patching global
// settings. Nil fields are left unchanged.
type UpdateSettingsRequest struct {
	AdminNumber    *string   `json:"adminNumber,omitempty"`
	CompletedSteps *[]string `json:"completedSteps,omitempty"`
}

// Validate validates the update settings request.
func (r *UpdateSettingsRequest) Validate() []FieldError {
	var errors []FieldError

	// The admin number is normalized downstream; it just has to contain
	// at least one digit to survive normalization.
	if r.AdminNumber != nil && *r.AdminNumber != "" && !adminNumberRE.MatchString(*r.AdminNumber) {
		errors = append(errors, FieldError{
			Field:   "adminNumber",
			Message: "admin number must contain at least one digit",
			Code:    "INVALID",
		})
	}

	return errors
}

// SetActiveDeviceRequest represents the request body for switching the
// active device. A null deviceId clears the selection.
type SetActiveDeviceRequest struct {
	DeviceID *string `json:"deviceId"`
}

// CompleteStepRequest represents the request body for recording a finished
// setup step.
type CompleteStepRequest struct {
	Step string `json:"step"`
}

// Validate validates the complete step request.
func (r *CompleteStepRequest) Validate() []FieldError {
	var errors []FieldError

	if r.Step == "" {
		errors = append(errors, FieldError{
			Field:   "step",
			Message: "step is required",
			Code:    "REQUIRED",
		})
	}

	return errors
}
