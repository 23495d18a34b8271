package audit

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Mindburn-Labs/treasury/pkg/store"
)

var (
	// ErrEmptyRange is returned when the requested event range is malformed.
	ErrEmptyRange = errors.New("audit: event range must satisfy 1 <= start <= end")
	// ErrStoreNotConfigured is returned when export is invoked without a
	// backing store.
	ErrStoreNotConfigured = errors.New("audit: store not configured (fail-closed)")
	// ErrNoEvents is returned when the range holds no events.
	ErrNoEvents = errors.New("audit: no events in range")
)

// Manifest describes the contents of an evidence pack.
type Manifest struct {
	GeneratedAt time.Time `json:"generated_at"`
	StartID     uint64    `json:"start_id"`
	EndID       uint64    `json:"end_id"`
	Count       int       `json:"count"`
	EventsHash  string    `json:"events_sha256"`
}

// Exporter builds evidence packs from a durable event store.
type Exporter struct {
	store store.EventStore
}

// NewExporter creates an exporter over the given store.
func NewExporter(s store.EventStore) *Exporter {
	return &Exporter{store: s}
}

// GeneratePack builds a zip holding events.json plus a manifest with a
// SHA-256 checksum over the serialized events. It returns the zip bytes and
// the checksum of the whole pack.
func (e *Exporter) GeneratePack(ctx context.Context, start, end uint64) ([]byte, string, error) {
	if e.store == nil {
		return nil, "", ErrStoreNotConfigured
	}
	if start == 0 || start > end {
		return nil, "", ErrEmptyRange
	}

	events, err := e.store.Range(ctx, start, end)
	if err != nil {
		return nil, "", fmt.Errorf("audit: query events: %w", err)
	}
	if len(events) == 0 {
		return nil, "", ErrNoEvents
	}

	eventsJSON, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return nil, "", err
	}
	eventsDigest := sha256.Sum256(eventsJSON)

	manifest := Manifest{
		GeneratedAt: time.Now().UTC(),
		StartID:     start,
		EndID:       end,
		Count:       len(events),
		EventsHash:  "sha256:" + hex.EncodeToString(eventsDigest[:]),
	}
	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range []struct {
		name string
		body []byte
	}{
		{"events.json", eventsJSON},
		{"manifest.json", manifestJSON},
	} {
		w, err := zw.Create(f.name)
		if err != nil {
			return nil, "", err
		}
		if _, err := w.Write(f.body); err != nil {
			return nil, "", err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, "", err
	}

	packDigest := sha256.Sum256(buf.Bytes())
	return buf.Bytes(), "sha256:" + hex.EncodeToString(packDigest[:]), nil
}
