package bandplan

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDefaultLookup(t *testing.T) {
	plan := Default()

	tests := []struct {
		name    string
		fHz     int64
		service string
	}{
		{"FM broadcast", 100_000_000, "FM Broadcast"},
		{"433 ISM", 433_920_000, "ISM/SRD"},
		{"2.4 GHz ISM", 2_450_000_000, "ISM"},
		{"inclusive low bound", 88_000_000, "FM Broadcast"},
		{"inclusive high bound", 108_000_000, "FM Broadcast"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			service, _, _ := plan.Lookup(tc.fHz)
			assert.Equal(t, tc.service, service)
		})
	}

	service, region, notes := plan.Lookup(50_000_000)
	assert.Empty(t, service)
	assert.Empty(t, region)
	assert.Empty(t, notes)
}

func TestParseCSV(t *testing.T) {
	src := `low_hz,high_hz,service,region,notes
144000000,146000000,Amateur,ITU-R1,2m band
430000000,440000000,Amateur,ITU-R1,70cm band
not-a-number,146000000,Broken,,skipped
420000000,,Broken,,skipped too
1240000000,1300000000,Amateur,ITU-R1,23cm band
`

	plan, err := parseCSV(strings.NewReader(src), discard())
	require.NoError(t, err)
	assert.Equal(t, 3, plan.Len(), "malformed rows are skipped, not fatal")

	service, region, notes := plan.Lookup(145_500_000)
	assert.Equal(t, "Amateur", service)
	assert.Equal(t, "ITU-R1", region)
	assert.Equal(t, "2m band", notes)
}

func TestParseCSVFirstMatchWins(t *testing.T) {
	src := `low_hz,high_hz,service,region,notes
400000000,500000000,Wide,,first
430000000,440000000,Narrow,,second
`

	plan, err := parseCSV(strings.NewReader(src), discard())
	require.NoError(t, err)

	service, _, notes := plan.Lookup(433_000_000)
	assert.Equal(t, "Wide", service)
	assert.Equal(t, "first", notes)
}

func TestParseCSVAlternateHeaders(t *testing.T) {
	src := `f_low_hz,f_high_hz,service,region,notes
88000000,108000000,FM,,
`

	plan, err := parseCSV(strings.NewReader(src), discard())
	require.NoError(t, err)

	service, _, _ := plan.Lookup(98_000_000)
	assert.Equal(t, "FM", service)
}

func TestParseCSVBadHeader(t *testing.T) {
	_, err := parseCSV(strings.NewReader("a,b,c\n1,2,3\n"), discard())
	assert.Error(t, err)
}

func TestLoadCSVMissingFile(t *testing.T) {
	_, err := LoadCSV("/nonexistent/bandplan.csv", discard())
	assert.Error(t, err)
}
