package models

import "github.com/gatekeeper/gatekeeper/internal/command"

// RelaySettingsInput carries per-device relay configuration in requests.
type RelaySettingsInput struct {
	AccessControl string `json:"accessControl"`
	LatchTime     string `json:"latchTime"`
}

// Validate validates the relay settings input.
func (r *RelaySettingsInput) Validate() []FieldError {
	var errors []FieldError

	if r.AccessControl != string(command.AccessAuthorized) && r.AccessControl != string(command.AccessAll) {
		errors = append(errors, FieldError{
			Field:   "relaySettings.accessControl",
			Message: "access control must be AUT or ALL",
			Code:    "INVALID",
		})
	}

	if !command.IsLatchTime(r.LatchTime) {
		errors = append(errors, FieldError{
			Field:   "relaySettings.latchTime",
			Message: "latch time must be exactly 3 digits",
			Code:    "INVALID",
		})
	}

	return errors
}

// CreateDeviceRequest represents the request body for registering a device.
type CreateDeviceRequest struct {
	Name          string              `json:"name"`
	UnitNumber    string              `json:"unitNumber"`
	Password      string              `json:"password"`
	RelaySettings *RelaySettingsInput `json:"relaySettings,omitempty"`
}

// Validate validates the create device request.
func (r *CreateDeviceRequest) Validate() []FieldError {
	var errors []FieldError

	if r.Name == "" {
		errors = append(errors, FieldError{
			Field:   "name",
			Message: "name is required",
			Code:    "REQUIRED",
		})
	}

	if !command.IsPhone(r.UnitNumber) {
		errors = append(errors, FieldError{
			Field:   "unitNumber",
			Message: "unit number is required and must not contain '#'",
			Code:    "INVALID",
		})
	}

	if !command.IsPassword(r.Password) {
		errors = append(errors, FieldError{
			Field:   "password",
			Message: "password must be exactly 4 digits",
			Code:    "INVALID",
		})
	}

	if r.RelaySettings != nil {
		errors = append(errors, r.RelaySettings.Validate()...)
	}

	return errors
}

// UpdateDeviceRequest represents the request body for updating a device.
// Nil fields are left unchanged.
type UpdateDeviceRequest struct {
	Name          *string             `json:"name,omitempty"`
	UnitNumber    *string             `json:"unitNumber,omitempty"`
	Password      *string             `json:"password,omitempty"`
	RelaySettings *RelaySettingsInput `json:"relaySettings,omitempty"`
}

// Validate validates the update device request.
func (r *UpdateDeviceRequest) Validate() []FieldError {
	var errors []FieldError

	if r.Name != nil && *r.Name == "" {
		errors = append(errors, FieldError{
			Field:   "name",
			Message: "name must not be empty",
			Code:    "INVALID",
		})
	}

	if r.UnitNumber != nil && !command.IsPhone(*r.UnitNumber) {
		errors = append(errors, FieldError{
			Field:   "unitNumber",
			Message: "unit number must not be empty or contain '#'",
			Code:    "INVALID",
		})
	}

	if r.Password != nil && !command.IsPassword(*r.Password) {
		errors = append(errors, FieldError{
			Field:   "password",
			Message: "password must be exactly 4 digits",
			Code:    "INVALID",
		})
	}

	if r.RelaySettings != nil {
		errors = append(errors, r.RelaySettings.Validate()...)
	}

	return errors
}
