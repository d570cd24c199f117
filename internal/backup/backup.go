package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/gatekeeper/gatekeeper/internal/storage"
	"github.com/gatekeeper/gatekeeper/internal/store"
)

// ErrNoKeysRestored is returned when a restore wrote nothing; a zero-key
// restore is a hard failure, not a silent no-op.
var ErrNoKeysRestored = errors.New("backup: no keys restored")

// EnvelopeVersion is written into every export for forward compatibility.
const EnvelopeVersion = 1

// Envelope is the exported backup document: the full persisted key space
// under "data", with version and creation time alongside.
type Envelope struct {
	Version   int                        `json:"version"`
	Timestamp time.Time                  `json:"timestamp"`
	Data      map[string]json.RawMessage `json:"data"`
}

// RestoreResult reports what a restore did: which parse tier fired, how
// many keys were written out of how many the payload held, and any
// warnings from the lossy tiers or per-key write failures.
type RestoreResult struct {
	Tier        Tier     `json:"tier"`
	KeysWritten int      `json:"keysWritten"`
	KeysTotal   int      `json:"keysTotal"`
	Merged      bool     `json:"merged"`
	Warnings    []string `json:"warnings,omitempty"`
}

// Config holds configuration for the backup Manager.
type Config struct {
	Port   storage.Port
	Store  *store.Store
	Logger zerolog.Logger
	Now    func() time.Time
}

// Manager implements export and restore over the storage port, forcing the
// store to reload after a restore rewrites the keys underneath it.
type Manager struct {
	port   storage.Port
	store  *store.Store
	logger zerolog.Logger
	now    func() time.Time
}

// NewManager creates a backup Manager.
func NewManager(cfg Config) *Manager {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		port:   cfg.Port,
		store:  cfg.Store,
		logger: cfg.Logger,
		now:    now,
	}
}

// Filename returns the suggested backup file name with the export date
// embedded, e.g. "gatekeeper-backup-2024-08-05.json".
func (m *Manager) Filename() string {
	return fmt.Sprintf("gatekeeper-backup-%s.json", m.now().UTC().Format("2006-01-02"))
}

// Export serializes every persisted key into one Envelope. Values that are
// valid JSON are embedded as-is; anything else is embedded as a JSON
// string.
func (m *Manager) Export(ctx context.Context) ([]byte, error) {
	keys, err := m.port.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate keys: %w", err)
	}

	data := make(map[string]json.RawMessage, len(keys))
	for _, key := range keys {
		value, err := m.port.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("read key %q: %w", key, err)
		}
		if json.Valid(value) {
			data[key] = json.RawMessage(value)
			continue
		}
		quoted, err := json.Marshal(string(value))
		if err != nil {
			return nil, fmt.Errorf("encode key %q: %w", key, err)
		}
		data[key] = quoted
	}

	envelope := Envelope{
		Version:   EnvelopeVersion,
		Timestamp: m.now().UTC(),
		Data:      data,
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return raw, nil
}

// Restore parses a backup (through the defensive cascade), merges it with
// any data already on the destination, rewrites the persisted key space,
// and reloads the store. At least one key must be written for the restore
// to count as a success.
func (m *Manager) Restore(ctx context.Context, input []byte) (*RestoreResult, error) {
	parsed, err := Parse(input, store.DocumentKey)
	if err != nil {
		return nil, err
	}

	result := &RestoreResult{
		Tier:      parsed.Tier,
		KeysTotal: len(parsed.Data),
		Warnings:  parsed.Warnings,
	}

	merged, err := m.mergeWithDestination(ctx, parsed.Data)
	if err != nil {
		return nil, err
	}
	result.Merged = merged

	if err := m.port.Clear(ctx); err != nil {
		return nil, fmt.Errorf("clear destination: %w", err)
	}

	var firstWriteErr error
	for key, value := range parsed.Data {
		if err := m.port.Set(ctx, key, value); err != nil {
			if firstWriteErr == nil {
				firstWriteErr = err
			}
			result.Warnings = append(result.Warnings, fmt.Sprintf("failed to write key %q: %v", key, err))
			continue
		}
		result.KeysWritten++
	}
	if result.KeysWritten == 0 {
		if firstWriteErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoKeysRestored, firstWriteErr)
		}
		return nil, ErrNoKeysRestored
	}

	if err := m.store.Reload(ctx); err != nil {
		return nil, fmt.Errorf("reload store after restore: %w", err)
	}

	m.logger.Info().
		Str("tier", string(result.Tier)).
		Int("keys_written", result.KeysWritten).
		Int("keys_total", result.KeysTotal).
		Bool("merged", result.Merged).
		Msg("backup restored")

	return result, nil
}

// mergeWithDestination reconciles the incoming primary document with a
// non-empty one already on the destination: devices and users are unioned
// by id with existing entries winning on collision, and log buckets are
// unioned by entry id. The merged document replaces the incoming one in
// data. Reports whether a merge happened.
func (m *Manager) mergeWithDestination(ctx context.Context, data map[string]json.RawMessage) (bool, error) {
	incomingRaw, ok := data[store.DocumentKey]
	if !ok {
		return false, nil
	}

	existingRaw, err := m.port.Get(ctx, store.DocumentKey)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("read destination document: %w", err)
	}

	existing := store.NewDocument()
	if err := json.Unmarshal(existingRaw, existing); err != nil {
		// A corrupt destination does not block restore; the incoming
		// document simply replaces it.
		m.logger.Warn().Err(err).Msg("destination document unreadable, overwriting")
		return false, nil
	}
	if existing.IsEmpty() {
		return false, nil
	}

	incoming := store.NewDocument()
	if err := json.Unmarshal(incomingRaw, incoming); err != nil {
		return false, fmt.Errorf("decode incoming document: %w", err)
	}

	merged := mergeDocuments(existing, incoming)
	mergedRaw, err := json.Marshal(merged)
	if err != nil {
		return false, fmt.Errorf("encode merged document: %w", err)
	}
	data[store.DocumentKey] = mergedRaw
	return true, nil
}

// mergeDocuments unions two documents. Existing entities win on id
// collision; imported duplicates are skipped, not overwritten. Log buckets
// keep both sides' unique entries, newest first, re-truncated to the ring
// bounds. Existing global settings win.
func mergeDocuments(existing, incoming *store.Document) *store.Document {
	merged := store.NewDocument()

	merged.Devices = append(merged.Devices, existing.Devices...)
	deviceIDs := make(map[string]bool, len(existing.Devices))
	for _, d := range existing.Devices {
		deviceIDs[d.ID] = true
	}
	for _, d := range incoming.Devices {
		if !deviceIDs[d.ID] {
			merged.Devices = append(merged.Devices, d)
			deviceIDs[d.ID] = true
		}
	}

	merged.Users = append(merged.Users, existing.Users...)
	userIDs := make(map[string]bool, len(existing.Users))
	for _, u := range existing.Users {
		userIDs[u.ID] = true
	}
	for _, u := range incoming.Users {
		if !userIDs[u.ID] {
			merged.Users = append(merged.Users, u)
			userIDs[u.ID] = true
		}
	}

	buckets := make(map[string]bool)
	for bucket := range existing.Logs {
		buckets[bucket] = true
	}
	for bucket := range incoming.Logs {
		buckets[bucket] = true
	}
	for bucket := range buckets {
		entries := append([]store.LogEntry(nil), existing.Logs[bucket]...)
		entryIDs := make(map[string]bool, len(entries))
		for _, e := range entries {
			entryIDs[e.ID] = true
		}
		for _, e := range incoming.Logs[bucket] {
			if !entryIDs[e.ID] {
				entries = append(entries, e)
				entryIDs[e.ID] = true
			}
		}
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].Timestamp.After(entries[j].Timestamp)
		})
		limit := store.DeviceLogLimit
		if bucket == store.SystemLogBucket {
			limit = store.SystemLogLimit
		}
		if len(entries) > limit {
			entries = entries[:limit]
		}
		merged.Logs[bucket] = entries
	}

	merged.GlobalSettings = existing.GlobalSettings
	return merged
}
