package audit

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/treasury/pkg/eventlog"
	"github.com/Mindburn-Labs/treasury/pkg/store"
)

func TestLoggerWritesJSONLine(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(&buf)

	err := l.Record(context.Background(), "contribute", "alice", map[string]any{"amount": 100})
	require.NoError(t, err)

	line := buf.String()
	require.True(t, strings.HasPrefix(line, "AUDIT: "), "line should carry the AUDIT prefix")

	var rec Record
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "AUDIT: ")), &rec))
	assert.Equal(t, "contribute", rec.Action)
	assert.Equal(t, "alice", rec.Actor)
	assert.NotEmpty(t, rec.ID)
	assert.EqualValues(t, 100, rec.Metadata["amount"])
}

func TestLoggerNilWriterDefaultsToStdout(t *testing.T) {
	assert.NotNil(t, NewLoggerWithWriter(nil))
}

func seededStore(t *testing.T, n uint64) store.EventStore {
	t.Helper()
	s := store.NewMemoryStore()
	for i := uint64(1); i <= n; i++ {
		require.NoError(t, s.Append(context.Background(), eventlog.Event{
			ID:          i,
			Type:        eventlog.TypeContribution,
			Actor:       "alice",
			Amount:      i * 10,
			LogicalTime: i,
			ContentHash: "sha256:aa",
			PrevHash:    "genesis",
		}))
	}
	return s
}

func TestGeneratePack(t *testing.T) {
	exp := NewExporter(seededStore(t, 3))

	pack, checksum, err := exp.GeneratePack(context.Background(), 1, 3)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(checksum, "sha256:"))

	zr, err := zip.NewReader(bytes.NewReader(pack), int64(len(pack)))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)

	files := map[string][]byte{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		files[f.Name] = body
	}

	var events []eventlog.Event
	require.NoError(t, json.Unmarshal(files["events.json"], &events))
	assert.Len(t, events, 3)

	var manifest Manifest
	require.NoError(t, json.Unmarshal(files["manifest.json"], &manifest))
	assert.Equal(t, uint64(1), manifest.StartID)
	assert.Equal(t, uint64(3), manifest.EndID)
	assert.Equal(t, 3, manifest.Count)
	assert.True(t, strings.HasPrefix(manifest.EventsHash, "sha256:"))
}

func TestGeneratePackErrors(t *testing.T) {
	ctx := context.Background()

	_, _, err := NewExporter(nil).GeneratePack(ctx, 1, 2)
	assert.ErrorIs(t, err, ErrStoreNotConfigured)

	exp := NewExporter(seededStore(t, 2))
	_, _, err = exp.GeneratePack(ctx, 0, 2)
	assert.ErrorIs(t, err, ErrEmptyRange)
	_, _, err = exp.GeneratePack(ctx, 3, 2)
	assert.ErrorIs(t, err, ErrEmptyRange)
	_, _, err = exp.GeneratePack(ctx, 10, 20)
	assert.ErrorIs(t, err, ErrNoEvents)
}

func TestGeneratePackDeterministicChecksumInputs(t *testing.T) {
	exp := NewExporter(seededStore(t, 2))

	p1, _, err := exp.GeneratePack(context.Background(), 1, 2)
	require.NoError(t, err)
	p2, _, err := exp.GeneratePack(context.Background(), 1, 2)
	require.NoError(t, err)

	extract := func(pack []byte) []byte {
		zr, err := zip.NewReader(bytes.NewReader(pack), int64(len(pack)))
		require.NoError(t, err)
		for _, f := range zr.File {
			if f.Name == "events.json" {
				rc, _ := f.Open()
				defer rc.Close()
				body, _ := io.ReadAll(rc)
				return body
			}
		}
		return nil
	}
	assert.Equal(t, extract(p1), extract(p2), "event serialization must be stable across exports")
}
