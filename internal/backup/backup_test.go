package backup_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekeeper/gatekeeper/internal/backup"
	"github.com/gatekeeper/gatekeeper/internal/command"
	"github.com/gatekeeper/gatekeeper/internal/storage"
	"github.com/gatekeeper/gatekeeper/internal/store"
)

func newTestManager(t *testing.T) (*backup.Manager, *store.Store, *storage.Memory) {
	t.Helper()
	port := storage.NewMemory()
	s := store.New(store.Config{Port: port, Logger: zerolog.Nop()})
	m := backup.NewManager(backup.Config{Port: port, Store: s, Logger: zerolog.Nop()})
	return m, s, port
}

func TestExportEnvelope(t *testing.T) {
	m, s, _ := newTestManager(t)
	ctx := context.Background()

	_, err := s.AddDevice(ctx, store.DeviceInput{Name: "Gate", UnitNumber: "+31612345678", Password: "1234"})
	require.NoError(t, err)

	raw, err := m.Export(ctx)
	require.NoError(t, err)

	var envelope backup.Envelope
	require.NoError(t, json.Unmarshal(raw, &envelope))
	assert.Equal(t, backup.EnvelopeVersion, envelope.Version)
	assert.Contains(t, envelope.Data, store.DocumentKey)
}

func TestSelfRestoreIsIdempotent(t *testing.T) {
	m, s, _ := newTestManager(t)
	ctx := context.Background()

	device, err := s.AddDevice(ctx, store.DeviceInput{Name: "Gate", UnitNumber: "+31612345678", Password: "1234"})
	require.NoError(t, err)
	user, err := s.AddUser(ctx, store.UserInput{Name: "Alice", PhoneNumber: "+61412345678", SerialNumber: "007"})
	require.NoError(t, err)
	_, err = s.AuthorizeUser(ctx, device.ID, user.ID)
	require.NoError(t, err)
	_, err = s.AddLog(ctx, device.ID, "Gate Open", "Opened the relay", true, command.CategoryRelay)
	require.NoError(t, err)

	exported, err := m.Export(ctx)
	require.NoError(t, err)

	result, err := m.Restore(ctx, exported)
	require.NoError(t, err)
	assert.Equal(t, backup.TierStrict, result.Tier)
	assert.Greater(t, result.KeysWritten, 0)

	devices, err := s.Devices(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, device.ID, devices[0].ID)

	users, err := s.Users(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)

	logs, err := s.Logs(ctx, device.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
}

func TestRestoreEmptyInputFails(t *testing.T) {
	m, _, _ := newTestManager(t)
	_, err := m.Restore(context.Background(), []byte("  "))
	assert.ErrorIs(t, err, backup.ErrEmptyBackup)
}

func TestRestoreMergePreservesExistingDevices(t *testing.T) {
	m, s, _ := newTestManager(t)
	ctx := context.Background()

	existing, err := s.AddDevice(ctx, store.DeviceInput{Name: "Original Name", UnitNumber: "+31612345678", Password: "1234"})
	require.NoError(t, err)

	// The backup carries the same device id with a different name, plus a
	// brand new device.
	imported := store.NewDocument()
	imported.Devices = []store.Device{
		{ID: existing.ID, Name: "Imported Name", UnitNumber: "+31600000000", Password: "0000", AuthorizedUsers: []string{}},
		{ID: "device-b", Name: "New Device", UnitNumber: "+31611111111", Password: "5678", AuthorizedUsers: []string{}},
	}
	payload := map[string]interface{}{store.DocumentKey: imported}
	input, err := json.Marshal(payload)
	require.NoError(t, err)

	result, err := m.Restore(ctx, input)
	require.NoError(t, err)
	assert.True(t, result.Merged)

	devices, err := s.Devices(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 2)

	byID := map[string]store.Device{}
	for _, d := range devices {
		byID[d.ID] = d
	}
	// Existing wins on id collision.
	assert.Equal(t, "Original Name", byID[existing.ID].Name)
	assert.Equal(t, "New Device", byID["device-b"].Name)
}

func TestRestoreMergeUnionsLogs(t *testing.T) {
	m, s, _ := newTestManager(t)
	ctx := context.Background()

	device, err := s.AddDevice(ctx, store.DeviceInput{Name: "Gate", UnitNumber: "+31612345678", Password: "1234"})
	require.NoError(t, err)
	kept, err := s.AddLog(ctx, device.ID, "Gate Open", "Opened the relay", true, command.CategoryRelay)
	require.NoError(t, err)

	exported, err := m.Export(ctx)
	require.NoError(t, err)

	// New activity after the backup was taken.
	fresh, err := s.AddLog(ctx, device.ID, "Gate Close", "Closed the relay", true, command.CategoryRelay)
	require.NoError(t, err)

	result, err := m.Restore(ctx, exported)
	require.NoError(t, err)
	assert.True(t, result.Merged)

	logs, err := s.Logs(ctx, device.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2, "both sides' unique entries survive the merge")

	ids := map[string]bool{}
	for _, entry := range logs {
		ids[entry.ID] = true
	}
	assert.True(t, ids[kept.ID])
	assert.True(t, ids[fresh.ID])
}

func TestRestoreWithTrailingCommaMatchesClean(t *testing.T) {
	m, s, _ := newTestManager(t)
	ctx := context.Background()

	_, err := s.AddDevice(ctx, store.DeviceInput{Name: "Gate", UnitNumber: "+31612345678", Password: "1234"})
	require.NoError(t, err)
	exported, err := m.Export(ctx)
	require.NoError(t, err)

	// Corrupt the export with a trailing comma before the closing brace.
	dirty := []byte(string(exported[:len(exported)-1]) + ",}")

	result, err := m.Restore(ctx, dirty)
	require.NoError(t, err)
	assert.Equal(t, backup.TierRepaired, result.Tier)

	devices, err := s.Devices(ctx)
	require.NoError(t, err)
	assert.Len(t, devices, 1)
}

func TestFilenameEmbedsDate(t *testing.T) {
	port := storage.NewMemory()
	s := store.New(store.Config{Port: port, Logger: zerolog.Nop()})
	m := backup.NewManager(backup.Config{
		Port:   port,
		Store:  s,
		Logger: zerolog.Nop(),
		Now:    fixedNow,
	})
	assert.Equal(t, "gatekeeper-backup-2024-08-05.json", m.Filename())
}

func fixedNow() time.Time {
	return time.Date(2024, 8, 5, 8, 0, 0, 0, time.UTC)
}
