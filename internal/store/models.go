// Package store is the single source of truth for devices, users, logs,
// and global settings. The whole state is one JSON document persisted under
// a single key through the storage port; every mutating operation is a full
// read-modify-write of that document.
package store

import (
	"errors"
	"time"

	"github.com/gatekeeper/gatekeeper/internal/command"
)

// Store errors.
var (
	ErrDeviceNotFound = errors.New("store: device not found")
	ErrUserNotFound   = errors.New("store: user not found")
	ErrSerialTaken    = errors.New("store: serial number already authorized on this device")
)

// Persistence keys. The document key holds the aggregate store; the legacy
// keys belong to the superseded single-device schema and are only read by
// the one-shot migration.
const (
	DocumentKey = "gatekeeper:store"

	LegacyKeyUnitNumber      = "gate:unit_number"
	LegacyKeyPassword        = "gate:password"
	LegacyKeyAdminNumber     = "gate:admin_number"
	LegacyKeyCompletedSteps  = "gate:completed_steps"
	LegacyKeyAuthorizedUsers = "gate:authorized_users"
	LegacyKeyLogs            = "gate:logs"
)

// SystemLogBucket receives log entries that carry no valid device id.
const SystemLogBucket = "system"

// Log ring-buffer bounds, newest first.
const (
	DeviceLogLimit = 200
	SystemLogLimit = 100
)

// DefaultDeviceName labels the device synthesized by legacy migration.
const DefaultDeviceName = "My Gate"

// RelaySettings holds the per-device relay configuration mirrored on the
// physical unit.
type RelaySettings struct {
	AccessControl command.AccessMode `json:"accessControl"`
	// LatchTime is a 3-digit string: "000" momentary, "999" toggle,
	// otherwise seconds.
	LatchTime string `json:"latchTime"`
}

// Device is a managed GSM relay unit.
type Device struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	UnitNumber string `json:"unitNumber"`
	// Password is always exactly 4 ASCII digits.
	Password string `json:"password"`
	// AuthorizedUsers holds user ids in authorization order.
	AuthorizedUsers []string      `json:"authorizedUsers"`
	RelaySettings   RelaySettings `json:"relaySettings"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// User is a global entity; membership on a device is recorded only in that
// device's AuthorizedUsers list.
type User struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber"`
	// SerialNumber is the 3-digit position (001-200) in a device's
	// onboard memory. Unique per device, not globally.
	SerialNumber string `json:"serialNumber"`
	// StartTime and EndTime are optional 10-digit YYMMDDHHMM strings.
	StartTime string `json:"startTime,omitempty"`
	EndTime   string `json:"endTime,omitempty"`
}

// LogEntry records one dispatched command or system event. Details are
// human-readable and never contain passwords.
type LogEntry struct {
	ID        string           `json:"id"`
	Timestamp time.Time        `json:"timestamp"`
	Action    string           `json:"action"`
	Details   string           `json:"details"`
	Success   bool             `json:"success"`
	DeviceID  string           `json:"deviceId,omitempty"`
	Category  command.Category `json:"category"`
}

// GlobalSettings is the store-wide singleton settings object.
type GlobalSettings struct {
	AdminNumber string `json:"adminNumber"`
	// ActiveDeviceID is nil or the id of a currently existing device.
	ActiveDeviceID *string  `json:"activeDeviceId"`
	CompletedSteps []string `json:"completedSteps"`
}

// Document is the aggregate root serialized as one JSON blob under
// DocumentKey.
type Document struct {
	Devices        []Device              `json:"devices"`
	Users          []User                `json:"users"`
	Logs           map[string][]LogEntry `json:"logs"`
	GlobalSettings GlobalSettings        `json:"globalSettings"`
}

// NewDocument returns an empty document with initialized collections.
func NewDocument() *Document {
	return &Document{
		Devices: []Device{},
		Users:   []User{},
		Logs:    map[string][]LogEntry{},
	}
}

// IsEmpty reports whether the document holds no devices, users, or logs.
func (d *Document) IsEmpty() bool {
	return len(d.Devices) == 0 && len(d.Users) == 0 && len(d.Logs) == 0
}

// DeviceInput holds the caller-supplied fields for a new device.
type DeviceInput struct {
	Name          string
	UnitNumber    string
	Password      string
	RelaySettings *RelaySettings
}

// DevicePatch holds optional updates for an existing device; nil fields are
// left unchanged.
type DevicePatch struct {
	Name          *string
	UnitNumber    *string
	Password      *string
	RelaySettings *RelaySettings
}

// UserInput holds the caller-supplied fields for a new user.
type UserInput struct {
	Name         string
	PhoneNumber  string
	SerialNumber string
	StartTime    string
	EndTime      string
}

// UserPatch holds optional updates for an existing user.
type UserPatch struct {
	Name         *string
	PhoneNumber  *string
	SerialNumber *string
	StartTime    *string
	EndTime      *string
}

// SettingsPatch holds optional updates for the global settings singleton.
// ActiveDeviceID changes go through SetActiveDevice so the foreign key stays
// validated.
type SettingsPatch struct {
	AdminNumber    *string
	CompletedSteps *[]string
}
