// Package bandplan maps detection frequencies to allocation labels from
// a static bandplan table.
package bandplan

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Band is a single allocation row. Bounds are inclusive.
type Band struct {
	LowHz   int64
	HighHz  int64
	Service string
	Region  string
	Notes   string
}

// Bandplan is an ordered band table; lookups return the first band that
// contains the frequency, so table order is significant.
type Bandplan struct {
	bands []Band
}

// Default returns the built-in minimal bandplan used when no CSV is
// configured.
func Default() *Bandplan {
	return &Bandplan{bands: []Band{
		{433_050_000, 434_790_000, "ISM/SRD", "ITU-R1 (EU)", "Short-range devices"},
		{902_000_000, 928_000_000, "ISM", "US (FCC)", "902-928 MHz ISM"},
		{2_400_000_000, 2_483_500_000, "ISM", "Global", "2.4 GHz ISM"},
		{1_420_000_000, 1_427_000_000, "Radio Astronomy", "Global", "Hydrogen line"},
		{88_000_000, 108_000_000, "FM Broadcast", "Global", "88-108 MHz Radio"},
	}}
}

// LoadCSV reads a bandplan from a CSV file with header
// low_hz,high_hz,service,region,notes. Rows with missing or non-numeric
// frequency bounds are skipped with a debug log line; a malformed row is
// never fatal.
func LoadCSV(path string, logger *slog.Logger) (*Bandplan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening bandplan: %w", err)
	}
	defer f.Close()

	plan, err := parseCSV(f, logger)
	if err != nil {
		return nil, fmt.Errorf("parsing bandplan %s: %w", path, err)
	}
	return plan, nil
}

func parseCSV(r io.Reader, logger *slog.Logger) (*Bandplan, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(strings.ToLower(name))] = i
	}

	// Prefer the canonical header names, accept the alternates seen in
	// the wild.
	lowCol, ok := col["low_hz"]
	if !ok {
		lowCol, ok = col["f_low_hz"]
	}
	if !ok {
		return nil, fmt.Errorf("no low_hz column in header %v", header)
	}
	highCol, ok := col["high_hz"]
	if !ok {
		highCol, ok = col["f_high_hz"]
	}
	if !ok {
		return nil, fmt.Errorf("no high_hz column in header %v", header)
	}

	field := func(record []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var plan Bandplan
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Debug("skipping malformed bandplan row", slog.Int("line", line), slog.String("error", err.Error()))
			continue
		}

		low, err := parseHz(record, lowCol)
		if err != nil {
			logger.Debug("skipping bandplan row with bad low_hz", slog.Int("line", line), slog.String("error", err.Error()))
			continue
		}
		high, err := parseHz(record, highCol)
		if err != nil {
			logger.Debug("skipping bandplan row with bad high_hz", slog.Int("line", line), slog.String("error", err.Error()))
			continue
		}

		plan.bands = append(plan.bands, Band{
			LowHz:   low,
			HighHz:  high,
			Service: field(record, "service"),
			Region:  field(record, "region"),
			Notes:   field(record, "notes"),
		})
	}

	return &plan, nil
}

func parseHz(record []string, i int) (int64, error) {
	if i >= len(record) {
		return 0, fmt.Errorf("missing field %d", i)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(record[i]), 64)
	if err != nil {
		return 0, err
	}
	return int64(v), nil
}

// Len returns the number of bands in the table.
func (p *Bandplan) Len() int { return len(p.bands) }

// Lookup returns the labels of the first band whose inclusive range
// contains fHz, or empty strings if no band matches.
func (p *Bandplan) Lookup(fHz int64) (service, region, notes string) {
	for _, b := range p.bands {
		if b.LowHz <= fHz && fHz <= b.HighHz {
			return b.Service, b.Region, b.Notes
		}
	}
	return "", "", ""
}
