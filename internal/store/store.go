package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gatekeeper/gatekeeper/internal/command"
	"github.com/gatekeeper/gatekeeper/internal/storage"
)

// Config holds configuration for the Store.
type Config struct {
	Port   storage.Port
	Logger zerolog.Logger

	// Now and NewID override time and id generation in tests.
	Now   func() time.Time
	NewID func() string
}

// Store owns the aggregate document. A single mutex serializes every
// read-modify-write cycle, which resolves the lost-update race the
// full-document persistence model would otherwise have.
type Store struct {
	port   storage.Port
	logger zerolog.Logger
	now    func() time.Time
	newID  func() string

	mu  sync.Mutex
	doc *Document
}

// New creates a Store. The document is loaded lazily on first access.
func New(cfg Config) *Store {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	newID := cfg.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &Store{
		port:   cfg.Port,
		logger: cfg.Logger,
		now:    now,
		newID:  newID,
	}
}

// initLocked loads the document from persistence, running legacy migration
// when no document exists yet. Idempotent; callers hold s.mu.
func (s *Store) initLocked(ctx context.Context) error {
	if s.doc != nil {
		return nil
	}

	raw, err := s.port.Get(ctx, DocumentKey)
	switch {
	case err == nil:
		doc := NewDocument()
		if err := json.Unmarshal(raw, doc); err != nil {
			return fmt.Errorf("decode store document: %w", err)
		}
		if doc.Logs == nil {
			doc.Logs = map[string][]LogEntry{}
		}
		s.doc = doc
		return nil
	case errors.Is(err, storage.ErrKeyNotFound):
		doc, err := s.migrateLegacy(ctx)
		if err != nil {
			return err
		}
		s.doc = doc
		return s.persistLocked(ctx)
	default:
		return fmt.Errorf("load store document: %w", err)
	}
}

// persistLocked serializes the whole document and writes it under
// DocumentKey. Callers hold s.mu.
func (s *Store) persistLocked(ctx context.Context) error {
	raw, err := json.Marshal(s.doc)
	if err != nil {
		return fmt.Errorf("encode store document: %w", err)
	}
	if err := s.port.Set(ctx, DocumentKey, raw); err != nil {
		s.logger.Error().Err(err).Msg("failed to persist store document")
		return fmt.Errorf("persist store document: %w", err)
	}
	return nil
}

// read runs fn against the loaded document under the lock.
func (s *Store) read(ctx context.Context, fn func(doc *Document)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.initLocked(ctx); err != nil {
		return err
	}
	fn(s.doc)
	return nil
}

// mutate runs fn against the loaded document under the lock and persists
// the result if fn succeeds.
func (s *Store) mutate(ctx context.Context, fn func(doc *Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.initLocked(ctx); err != nil {
		return err
	}
	if err := fn(s.doc); err != nil {
		return err
	}
	return s.persistLocked(ctx)
}

// Reload drops the in-memory document and reloads it from persistence.
// Used after a restore rewrites the underlying keys.
func (s *Store) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = nil
	return s.initLocked(ctx)
}

// Devices returns all devices.
func (s *Store) Devices(ctx context.Context) ([]Device, error) {
	var out []Device
	err := s.read(ctx, func(doc *Document) {
		out = append([]Device(nil), doc.Devices...)
	})
	return out, err
}

// Device returns a device by id.
func (s *Store) Device(ctx context.Context, id string) (*Device, error) {
	var out *Device
	err := s.read(ctx, func(doc *Document) {
		if d := findDevice(doc, id); d != nil {
			copied := *d
			out = &copied
		}
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, ErrDeviceNotFound
	}
	return out, nil
}

// AddDevice creates a device. Duplicate names and unit numbers are allowed.
func (s *Store) AddDevice(ctx context.Context, input DeviceInput) (*Device, error) {
	settings := RelaySettings{AccessControl: command.AccessAuthorized, LatchTime: command.LatchMomentary}
	if input.RelaySettings != nil {
		settings = *input.RelaySettings
	}

	now := s.now()
	device := Device{
		ID:              s.newID(),
		Name:            input.Name,
		UnitNumber:      input.UnitNumber,
		Password:        input.Password,
		AuthorizedUsers: []string{},
		RelaySettings:   settings,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err := s.mutate(ctx, func(doc *Document) error {
		doc.Devices = append(doc.Devices, device)
		if doc.GlobalSettings.ActiveDeviceID == nil {
			doc.GlobalSettings.ActiveDeviceID = &device.ID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &device, nil
}

// UpdateDevice merges patch into an existing device and bumps UpdatedAt.
func (s *Store) UpdateDevice(ctx context.Context, id string, patch DevicePatch) (*Device, error) {
	var out *Device
	err := s.mutate(ctx, func(doc *Document) error {
		device := findDevice(doc, id)
		if device == nil {
			return ErrDeviceNotFound
		}
		if patch.Name != nil {
			device.Name = *patch.Name
		}
		if patch.UnitNumber != nil {
			device.UnitNumber = *patch.UnitNumber
		}
		if patch.Password != nil {
			device.Password = *patch.Password
		}
		if patch.RelaySettings != nil {
			device.RelaySettings = *patch.RelaySettings
		}
		device.UpdatedAt = s.now()
		copied := *device
		out = &copied
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteDevice removes a device, its log bucket, and, if it was active,
// re-points the active device to another remaining device or nil. Users
// stay in the global list; only this device's membership references go.
// Returns whether a device was actually removed.
func (s *Store) DeleteDevice(ctx context.Context, id string) (bool, error) {
	removed := false
	err := s.mutate(ctx, func(doc *Document) error {
		for i, d := range doc.Devices {
			if d.ID == id {
				doc.Devices = append(doc.Devices[:i], doc.Devices[i+1:]...)
				removed = true
				break
			}
		}
		if !removed {
			return nil
		}
		delete(doc.Logs, id)
		active := doc.GlobalSettings.ActiveDeviceID
		if active != nil && *active == id {
			if len(doc.Devices) > 0 {
				doc.GlobalSettings.ActiveDeviceID = &doc.Devices[0].ID
			} else {
				doc.GlobalSettings.ActiveDeviceID = nil
			}
		}
		return nil
	})
	return removed, err
}

// Users returns the global user list.
func (s *Store) Users(ctx context.Context) ([]User, error) {
	var out []User
	err := s.read(ctx, func(doc *Document) {
		out = append([]User(nil), doc.Users...)
	})
	return out, err
}

// User returns a user by id.
func (s *Store) User(ctx context.Context, id string) (*User, error) {
	var out *User
	err := s.read(ctx, func(doc *Document) {
		if u := findUser(doc, id); u != nil {
			copied := *u
			out = &copied
		}
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, ErrUserNotFound
	}
	return out, nil
}

// AddUser creates a user in the global list.
func (s *Store) AddUser(ctx context.Context, input UserInput) (*User, error) {
	user := User{
		ID:           s.newID(),
		Name:         input.Name,
		PhoneNumber:  input.PhoneNumber,
		SerialNumber: input.SerialNumber,
		StartTime:    input.StartTime,
		EndTime:      input.EndTime,
	}
	err := s.mutate(ctx, func(doc *Document) error {
		doc.Users = append(doc.Users, user)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser merges patch into an existing user.
func (s *Store) UpdateUser(ctx context.Context, id string, patch UserPatch) (*User, error) {
	var out *User
	err := s.mutate(ctx, func(doc *Document) error {
		user := findUser(doc, id)
		if user == nil {
			return ErrUserNotFound
		}
		if patch.Name != nil {
			user.Name = *patch.Name
		}
		if patch.PhoneNumber != nil {
			user.PhoneNumber = *patch.PhoneNumber
		}
		if patch.SerialNumber != nil {
			user.SerialNumber = *patch.SerialNumber
		}
		if patch.StartTime != nil {
			user.StartTime = *patch.StartTime
		}
		if patch.EndTime != nil {
			user.EndTime = *patch.EndTime
		}
		copied := *user
		out = &copied
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteUser removes a user from the global list and scrubs its id from
// every device's AuthorizedUsers. Returns whether a user was removed.
func (s *Store) DeleteUser(ctx context.Context, id string) (bool, error) {
	removed := false
	err := s.mutate(ctx, func(doc *Document) error {
		for i, u := range doc.Users {
			if u.ID == id {
				doc.Users = append(doc.Users[:i], doc.Users[i+1:]...)
				removed = true
				break
			}
		}
		if !removed {
			return nil
		}
		for i := range doc.Devices {
			doc.Devices[i].AuthorizedUsers = removeID(doc.Devices[i].AuthorizedUsers, id)
		}
		return nil
	})
	return removed, err
}

// AuthorizeUser adds a user to a device's authorized list. Adding an
// already-present user reports no change. A serial collision with another
// user already authorized on the same device is rejected.
func (s *Store) AuthorizeUser(ctx context.Context, deviceID, userID string) (bool, error) {
	changed := false
	err := s.mutate(ctx, func(doc *Document) error {
		device := findDevice(doc, deviceID)
		if device == nil {
			return ErrDeviceNotFound
		}
		user := findUser(doc, userID)
		if user == nil {
			return ErrUserNotFound
		}
		for _, id := range device.AuthorizedUsers {
			if id == userID {
				return nil
			}
			if other := findUser(doc, id); other != nil && other.SerialNumber == user.SerialNumber {
				return ErrSerialTaken
			}
		}
		device.AuthorizedUsers = append(device.AuthorizedUsers, userID)
		device.UpdatedAt = s.now()
		changed = true
		return nil
	})
	return changed, err
}

// DeauthorizeUser removes a user from a device's authorized list. Removing
// an absent user reports no change.
func (s *Store) DeauthorizeUser(ctx context.Context, deviceID, userID string) (bool, error) {
	changed := false
	err := s.mutate(ctx, func(doc *Document) error {
		device := findDevice(doc, deviceID)
		if device == nil {
			return ErrDeviceNotFound
		}
		before := len(device.AuthorizedUsers)
		device.AuthorizedUsers = removeID(device.AuthorizedUsers, userID)
		if len(device.AuthorizedUsers) != before {
			device.UpdatedAt = s.now()
			changed = true
		}
		return nil
	})
	return changed, err
}

// DeviceUsers returns the users authorized on a device, in authorization
// order.
func (s *Store) DeviceUsers(ctx context.Context, deviceID string) ([]User, error) {
	var out []User
	notFound := false
	err := s.read(ctx, func(doc *Document) {
		device := findDevice(doc, deviceID)
		if device == nil {
			notFound = true
			return
		}
		out = make([]User, 0, len(device.AuthorizedUsers))
		for _, id := range device.AuthorizedUsers {
			if u := findUser(doc, id); u != nil {
				out = append(out, *u)
			}
		}
	})
	if err != nil {
		return nil, err
	}
	if notFound {
		return nil, ErrDeviceNotFound
	}
	return out, nil
}

// Settings returns the global settings singleton.
func (s *Store) Settings(ctx context.Context) (*GlobalSettings, error) {
	var out GlobalSettings
	err := s.read(ctx, func(doc *Document) {
		out = doc.GlobalSettings
		out.CompletedSteps = append([]string(nil), doc.GlobalSettings.CompletedSteps...)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateSettings shallow-merges patch into the global settings.
func (s *Store) UpdateSettings(ctx context.Context, patch SettingsPatch) (*GlobalSettings, error) {
	var out GlobalSettings
	err := s.mutate(ctx, func(doc *Document) error {
		if patch.AdminNumber != nil {
			doc.GlobalSettings.AdminNumber = *patch.AdminNumber
		}
		if patch.CompletedSteps != nil {
			doc.GlobalSettings.CompletedSteps = append([]string(nil), (*patch.CompletedSteps)...)
		}
		out = doc.GlobalSettings
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SetActiveDevice points the active device at an existing device, or clears
// it with nil. The foreign key is validated at this boundary.
func (s *Store) SetActiveDevice(ctx context.Context, deviceID *string) error {
	return s.mutate(ctx, func(doc *Document) error {
		if deviceID == nil {
			doc.GlobalSettings.ActiveDeviceID = nil
			return nil
		}
		if findDevice(doc, *deviceID) == nil {
			return ErrDeviceNotFound
		}
		id := *deviceID
		doc.GlobalSettings.ActiveDeviceID = &id
		return nil
	})
}

// MarkStepCompleted records a setup-wizard step as done. Idempotent.
func (s *Store) MarkStepCompleted(ctx context.Context, step string) error {
	return s.mutate(ctx, func(doc *Document) error {
		for _, existing := range doc.GlobalSettings.CompletedSteps {
			if existing == step {
				return nil
			}
		}
		doc.GlobalSettings.CompletedSteps = append(doc.GlobalSettings.CompletedSteps, step)
		return nil
	})
}

func findDevice(doc *Document, id string) *Device {
	for i := range doc.Devices {
		if doc.Devices[i].ID == id {
			return &doc.Devices[i]
		}
	}
	return nil
}

func findUser(doc *Document, id string) *User {
	for i := range doc.Users {
		if doc.Users[i].ID == id {
			return &doc.Users[i]
		}
	}
	return nil
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}
