package models

import "github.com/gatekeeper/gatekeeper/internal/command"

// SendCommandRequest represents the request body for dispatching a device
// command. Type selects the variant; the remaining fields are consulted per
// type and validated by the dispatcher.
type SendCommandRequest struct {
	Type string `json:"type"`

	// Password change.
	NewPassword string `json:"newPassword,omitempty"`

	// User commands.
	Serial    string `json:"serial,omitempty"`
	SerialEnd string `json:"serialEnd,omitempty"`
	Phone     string `json:"phone,omitempty"`
	StartTime string `json:"startTime,omitempty"`
	EndTime   string `json:"endTime,omitempty"`

	// Settings commands.
	AccessControl string `json:"accessControl,omitempty"`
	LatchTime     string `json:"latchTime,omitempty"`
	AdminNumber   string `json:"adminNumber,omitempty"`
}

// dispatchableKinds lists the command kinds a client may request.
var dispatchableKinds = map[command.Kind]bool{
	command.KindOpen:           true,
	command.KindClose:          true,
	command.KindStatus:         true,
	command.KindPasswordChange: true,
	command.KindUserAdd:        true,
	command.KindUserRemove:     true,
	command.KindUserQuery:      true,
	command.KindUserQueryRange: true,
	command.KindAccessControl:  true,
	command.KindLatchTime:      true,
	command.KindAdminRegister:  true,
}

// Validate validates the send command request.
func (r *SendCommandRequest) Validate() []FieldError {
	var errors []FieldError

	if r.Type == "" {
		errors = append(errors, FieldError{
			Field:   "type",
			Message: "type is required",
			Code:    "REQUIRED",
		})
	} else if !dispatchableKinds[command.Kind(r.Type)] {
		errors = append(errors, FieldError{
			Field:   "type",
			Message: "unknown command type",
			Code:    "INVALID",
		})
	}

	return errors
}
