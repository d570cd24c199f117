package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gatekeeper/gatekeeper/internal/command"
	"github.com/gatekeeper/gatekeeper/internal/storage"
)

// legacyUser is the shape of entries in the superseded flat authorized-user
// list. Names were not stored; migration derives a display name from the
// serial.
type legacyUser struct {
	PhoneNumber  string `json:"phoneNumber"`
	SerialNumber string `json:"serialNumber"`
	StartTime    string `json:"startTime,omitempty"`
	EndTime      string `json:"endTime,omitempty"`
}

// migrateLegacy converts the old single-device key space into a Document.
// It only ever runs when no document exists, which makes the migration
// one-shot and idempotent. A missing legacy unit number means a fresh
// install: the result is an empty store, not an error.
func (s *Store) migrateLegacy(ctx context.Context) (*Document, error) {
	doc := NewDocument()

	unitNumber, ok, err := s.legacyString(ctx, LegacyKeyUnitNumber)
	if err != nil {
		return nil, err
	}
	if !ok || unitNumber == "" {
		return doc, nil
	}

	password, _, err := s.legacyString(ctx, LegacyKeyPassword)
	if err != nil {
		return nil, err
	}
	adminNumber, _, err := s.legacyString(ctx, LegacyKeyAdminNumber)
	if err != nil {
		return nil, err
	}

	now := s.now()
	device := Device{
		ID:              s.newID(),
		Name:            DefaultDeviceName,
		UnitNumber:      unitNumber,
		Password:        password,
		AuthorizedUsers: []string{},
		RelaySettings: RelaySettings{
			AccessControl: command.AccessAuthorized,
			LatchTime:     command.LatchMomentary,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	var legacyUsers []legacyUser
	if err := s.legacyJSON(ctx, LegacyKeyAuthorizedUsers, &legacyUsers); err != nil {
		return nil, err
	}
	for _, lu := range legacyUsers {
		user := User{
			ID:           s.newID(),
			Name:         fmt.Sprintf("User %s", lu.SerialNumber),
			PhoneNumber:  lu.PhoneNumber,
			SerialNumber: lu.SerialNumber,
			StartTime:    lu.StartTime,
			EndTime:      lu.EndTime,
		}
		doc.Users = append(doc.Users, user)
		device.AuthorizedUsers = append(device.AuthorizedUsers, user.ID)
	}

	var legacyLogs []LogEntry
	if err := s.legacyJSON(ctx, LegacyKeyLogs, &legacyLogs); err != nil {
		return nil, err
	}
	for i := range legacyLogs {
		if legacyLogs[i].ID == "" {
			legacyLogs[i].ID = s.newID()
		}
		legacyLogs[i].DeviceID = device.ID
	}
	if len(legacyLogs) > DeviceLogLimit {
		legacyLogs = legacyLogs[:DeviceLogLimit]
	}

	var completedSteps []string
	if err := s.legacyJSON(ctx, LegacyKeyCompletedSteps, &completedSteps); err != nil {
		return nil, err
	}

	doc.Devices = append(doc.Devices, device)
	if len(legacyLogs) > 0 {
		doc.Logs[device.ID] = legacyLogs
	}
	doc.GlobalSettings = GlobalSettings{
		AdminNumber:    adminNumber,
		ActiveDeviceID: &doc.Devices[0].ID,
		CompletedSteps: completedSteps,
	}

	s.logger.Info().
		Str("device_id", device.ID).
		Int("users", len(doc.Users)).
		Int("logs", len(legacyLogs)).
		Msg("migrated legacy single-device data")

	return doc, nil
}

// legacyString reads a legacy key holding either a JSON-quoted or bare
// string value.
func (s *Store) legacyString(ctx context.Context, key string) (string, bool, error) {
	raw, err := s.port.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read legacy key %q: %w", key, err)
	}
	var value string
	if err := json.Unmarshal(raw, &value); err == nil {
		return value, true, nil
	}
	return string(raw), true, nil
}

// legacyJSON reads a legacy key holding a JSON value. An unparseable value
// is skipped: migration salvages what it can rather than failing the whole
// store initialization.
func (s *Store) legacyJSON(ctx context.Context, key string, v interface{}) error {
	raw, err := s.port.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil
		}
		return fmt.Errorf("read legacy key %q: %w", key, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("skipping unparseable legacy value")
	}
	return nil
}
