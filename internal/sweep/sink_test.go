package sweep

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLSinkAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "detections.jsonl")
	sink := &JSONLSink{Path: path}

	first := DetectionRecord{
		TimeUTC:   "2026-08-29T12:00:00Z",
		FCenterHz: 433908000,
		FLowHz:    433900000,
		FHighHz:   433916000,
		PeakDB:    -70.2,
		NoiseDB:   -102.5,
		SNRDB:     32.3,
		Service:   "ISM/SRD",
		Region:    "ITU-1",
		IsNew:     true,
	}
	second := first
	second.FCenterHz = 433920000
	second.IsNew = false

	require.NoError(t, sink.Emit(first))
	require.NoError(t, sink.Emit(second))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var got []DetectionRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec DetectionRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		got = append(got, rec)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, got, 2)
	assert.Equal(t, first, got[0])
	assert.Equal(t, second, got[1])
}

func TestJSONLSinkFieldNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "detections.jsonl")
	sink := &JSONLSink{Path: path}

	require.NoError(t, sink.Emit(DetectionRecord{TimeUTC: "2026-08-29T12:00:00Z"}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var obj map[string]any
	require.NoError(t, json.Unmarshal(raw, &obj))
	for _, key := range []string{
		"time_utc", "f_center_hz", "f_low_hz", "f_high_hz",
		"peak_db", "noise_db", "snr_db", "service", "region", "notes", "is_new",
	} {
		assert.Contains(t, obj, key)
	}
}

func TestNotifySinkIgnoresKnownSignals(t *testing.T) {
	sink := &NotifySink{}
	assert.NoError(t, sink.Emit(DetectionRecord{IsNew: false}))
}
