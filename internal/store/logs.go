package store

import (
	"context"

	"github.com/gatekeeper/gatekeeper/internal/command"
)

// AddLog prepends a log entry to a device's bucket, truncating to the ring
// bound. An empty or unknown device id is redirected to the system bucket
// rather than failing.
func (s *Store) AddLog(ctx context.Context, deviceID, action, details string, success bool, category command.Category) (*LogEntry, error) {
	entry := LogEntry{
		ID:        s.newID(),
		Timestamp: s.now(),
		Action:    action,
		Details:   details,
		Success:   success,
		Category:  category,
	}

	err := s.mutate(ctx, func(doc *Document) error {
		bucket := SystemLogBucket
		if deviceID != "" && findDevice(doc, deviceID) != nil {
			bucket = deviceID
			entry.DeviceID = deviceID
		}
		limit := DeviceLogLimit
		if bucket == SystemLogBucket {
			limit = SystemLogLimit
		}

		entries := append([]LogEntry{entry}, doc.Logs[bucket]...)
		if len(entries) > limit {
			entries = entries[:limit]
		}
		doc.Logs[bucket] = entries
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Logs returns a device's log bucket, newest first. An empty or unknown
// device id reads the system bucket.
func (s *Store) Logs(ctx context.Context, deviceID string) ([]LogEntry, error) {
	var out []LogEntry
	err := s.read(ctx, func(doc *Document) {
		bucket := SystemLogBucket
		if deviceID != "" && findDevice(doc, deviceID) != nil {
			bucket = deviceID
		}
		out = append([]LogEntry(nil), doc.Logs[bucket]...)
	})
	return out, err
}

// ClearLogs resets a device's log bucket. An empty or unknown device id
// clears the system bucket.
func (s *Store) ClearLogs(ctx context.Context, deviceID string) error {
	return s.mutate(ctx, func(doc *Document) error {
		bucket := SystemLogBucket
		if deviceID != "" && findDevice(doc, deviceID) != nil {
			bucket = deviceID
		}
		delete(doc.Logs, bucket)
		return nil
	})
}
