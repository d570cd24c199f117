package store_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/gatekeeper/gatekeeper/internal/storage"
	"github.com/gatekeeper/gatekeeper/internal/store"
)

func seedLegacyKeys(t *testing.T, port *storage.Memory) {
	t.Helper()
	ctx := context.Background()
	seed := map[string]string{
		store.LegacyKeyUnitNumber:     `"+31612345678"`,
		store.LegacyKeyPassword:       `"4321"`,
		store.LegacyKeyAdminNumber:    `"0031687654321"`,
		store.LegacyKeyCompletedSteps: `["setup:unit","setup:password"]`,
		store.LegacyKeyAuthorizedUsers: `[
			{"phoneNumber":"+31611111111","serialNumber":"001"},
			{"phoneNumber":"+31622222222","serialNumber":"002","startTime":"2408050800","endTime":"2412312359"}
		]`,
		store.LegacyKeyLogs: `[
			{"id":"log-1","timestamp":"2024-08-05T08:00:00Z","action":"Gate Open","details":"Opened the relay","success":true,"category":"relay"}
		]`,
	}
	for key, value := range seed {
		if err := port.Set(ctx, key, []byte(value)); err != nil {
			t.Fatalf("seed %s: %v", key, err)
		}
	}
}

func TestMigrationSynthesizesDevice(t *testing.T) {
	port := storage.NewMemory()
	seedLegacyKeys(t, port)
	ctx := context.Background()

	s := store.New(store.Config{Port: port, Logger: zerolog.Nop()})

	devices, err := s.Devices(ctx)
	if err != nil {
		t.Fatalf("devices: %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("expected one migrated device, got %d", len(devices))
	}
	device := devices[0]
	if device.Name != store.DefaultDeviceName {
		t.Errorf("expected default name %q, got %q", store.DefaultDeviceName, device.Name)
	}
	if device.UnitNumber != "+31612345678" || device.Password != "4321" {
		t.Errorf("unexpected migrated device fields: %+v", device)
	}

	users, err := s.DeviceUsers(ctx, device.ID)
	if err != nil {
		t.Fatalf("device users: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected two migrated users, got %d", len(users))
	}
	if users[0].Name != "User 001" {
		t.Errorf("expected derived display name, got %q", users[0].Name)
	}
	if users[1].StartTime != "2408050800" || users[1].EndTime != "2412312359" {
		t.Errorf("expected time limits to survive migration: %+v", users[1])
	}

	logs, err := s.Logs(ctx, device.ID)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if len(logs) != 1 || logs[0].Action != "Gate Open" {
		t.Errorf("expected legacy log to be copied, got %v", logs)
	}

	settings, err := s.Settings(ctx)
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if settings.AdminNumber != "0031687654321" {
		t.Errorf("expected admin number to migrate, got %q", settings.AdminNumber)
	}
	if settings.ActiveDeviceID == nil || *settings.ActiveDeviceID != device.ID {
		t.Error("expected migrated device to become active")
	}
	if len(settings.CompletedSteps) != 2 {
		t.Errorf("expected completed steps to migrate, got %v", settings.CompletedSteps)
	}
}

func TestMigrationFreshInstall(t *testing.T) {
	// No legacy unit number: migration yields an empty store, not an error.
	port := storage.NewMemory()
	s := store.New(store.Config{Port: port, Logger: zerolog.Nop()})
	ctx := context.Background()

	devices, err := s.Devices(ctx)
	if err != nil {
		t.Fatalf("devices: %v", err)
	}
	if len(devices) != 0 {
		t.Errorf("expected empty store on fresh install, got %d devices", len(devices))
	}
}

func TestMigrationRunsOnce(t *testing.T) {
	port := storage.NewMemory()
	seedLegacyKeys(t, port)
	ctx := context.Background()

	first := store.New(store.Config{Port: port, Logger: zerolog.Nop()})
	devices, err := first.Devices(ctx)
	if err != nil {
		t.Fatalf("devices: %v", err)
	}
	migratedID := devices[0].ID

	// A fresh store over the same port loads the persisted document
	// instead of migrating again.
	second := store.New(store.Config{Port: port, Logger: zerolog.Nop()})
	devices, err = second.Devices(ctx)
	if err != nil {
		t.Fatalf("devices after reopen: %v", err)
	}
	if len(devices) != 1 || devices[0].ID != migratedID {
		t.Errorf("expected migration to run once, got %v", devices)
	}
}

func TestMigrationToleratesBareStringValues(t *testing.T) {
	// Legacy values were not always JSON-quoted.
	port := storage.NewMemory()
	ctx := context.Background()
	if err := port.Set(ctx, store.LegacyKeyUnitNumber, []byte("+31612345678")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := port.Set(ctx, store.LegacyKeyPassword, []byte("9999")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	s := store.New(store.Config{Port: port, Logger: zerolog.Nop()})
	devices, err := s.Devices(ctx)
	if err != nil {
		t.Fatalf("devices: %v", err)
	}
	if len(devices) != 1 || devices[0].UnitNumber != "+31612345678" || devices[0].Password != "9999" {
		t.Errorf("expected bare-string legacy values to migrate, got %+v", devices)
	}
}
