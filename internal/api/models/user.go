package models

import "github.com/gatekeeper/gatekeeper/internal/command"

// CreateUserRequest represents the request body for adding a user.
type CreateUserRequest struct {
	Name         string `json:"name"`
	PhoneNumber  string `json:"phoneNumber"`
	SerialNumber string `json:"serialNumber"`
	StartTime    string `json:"startTime,omitempty"`
	EndTime      string `json:"endTime,omitempty"`
}

// Validate validates the create user request.
func (r *CreateUserRequest) Validate() []FieldError {
	var errors []FieldError

	if r.Name == "" {
		errors = append(errors, FieldError{
			Field:   "name",
			Message: "name is required",
			Code:    "REQUIRED",
		})
	}

	if !command.IsPhone(r.PhoneNumber) {
		errors = append(errors, FieldError{
			Field:   "phoneNumber",
			Message: "phone number is required and must not contain '#'",
			Code:    "INVALID",
		})
	}

	if !command.IsSerial(r.SerialNumber) {
		errors = append(errors, FieldError{
			Field:   "serialNumber",
			Message: "serial number must be exactly 3 digits",
			Code:    "INVALID",
		})
	}

	errors = append(errors, validateTimeWindow(r.StartTime, r.EndTime)...)

	return errors
}

// UpdateUserRequest represents the request body for updating a user.
// Nil fields are left unchanged.
type UpdateUserRequest struct {
	Name         *string `json:"name,omitempty"`
	PhoneNumber  *string `json:"phoneNumber,omitempty"`
	SerialNumber *string `json:"serialNumber,omitempty"`
	StartTime    *string `json:"startTime,omitempty"`
	EndTime      *string `json:"endTime,omitempty"`
}

// Validate validates the update user request.
func (r *UpdateUserRequest) Validate() []FieldError {
	var errors []FieldError

	if r.Name != nil && *r.Name == "" {
		errors = append(errors, FieldError{
			Field:   "name",
			Message: "name must not be empty",
			Code:    "INVALID",
		})
	}

	if r.PhoneNumber != nil && !command.IsPhone(*r.PhoneNumber) {
		errors = append(errors, FieldError{
			Field:   "phoneNumber",
			Message: "phone number must not be empty or contain '#'",
			Code:    "INVALID",
		})
	}

	if r.SerialNumber != nil && !command.IsSerial(*r.SerialNumber) {
		errors = append(errors, FieldError{
			Field:   "serialNumber",
			Message: "serial number must be exactly 3 digits",
			Code:    "INVALID",
		})
	}

	// Patches touch one field at a time, so only the format of provided
	// bounds is checked here. An empty string clears a bound.
	if r.StartTime != nil && *r.StartTime != "" && !command.IsCommandTime(*r.StartTime) {
		errors = append(errors, FieldError{
			Field:   "startTime",
			Message: "start time must be exactly 10 digits (YYMMDDHHMM)",
			Code:    "INVALID",
		})
	}

	if r.EndTime != nil && *r.EndTime != "" && !command.IsCommandTime(*r.EndTime) {
		errors = append(errors, FieldError{
			Field:   "endTime",
			Message: "end time must be exactly 10 digits (YYMMDDHHMM)",
			Code:    "INVALID",
		})
	}

	return errors
}

// validateTimeWindow checks the optional YYMMDDHHMM access window pair.
// Both bounds must be present together or absent together.
func validateTimeWindow(start, end string) []FieldError {
	var errors []FieldError

	if (start == "") != (end == "") {
		errors = append(errors, FieldError{
			Field:   "startTime",
			Message: "start time and end time must be provided together",
			Code:    "INVALID",
		})
		return errors
	}

	if start != "" && !command.IsCommandTime(start) {
		errors = append(errors, FieldError{
			Field:   "startTime",
			Message: "start time must be exactly 10 digits (YYMMDDHHMM)",
			Code:    "INVALID",
		})
	}

	if end != "" && !command.IsCommandTime(end) {
		errors = append(errors, FieldError{
			Field:   "endTime",
			Message: "end time must be exactly 10 digits (YYMMDDHHMM)",
			Code:    "INVALID",
		})
	}

	return errors
}
