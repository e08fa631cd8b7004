package bridge

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strings"

	"airguard/internal/config"
	"airguard/internal/model"
)

// ReplaySource plays back recorded samples from a file, one line per tick.
// Lines are JSON objects or CSV rows; a CSV header row names the columns,
// otherwise columns are gas, temp, hum, press. EOF yields no data.
type ReplaySource struct {
	file    *os.File
	scanner *bufio.Scanner
	header  []string
	line    int
}

func OpenReplay(path string) (*ReplaySource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &ReplaySource{file: f, scanner: bufio.NewScanner(f)}, nil
}

func (r *ReplaySource) Fetch(ctx context.Context) (*model.Sample, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !r.scanner.Scan() {
			return nil, r.scanner.Err()
		}
		r.line++
		trim := strings.TrimSpace(r.scanner.Text())
		if trim == "" || strings.HasPrefix(trim, "#") {
			continue
		}
		sample, err := r.parseLine(trim)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", r.line, err)
		}
		if sample == nil {
			continue
		}
		return sample, nil
	}
}

func (r *ReplaySource) parseLine(line string) (*model.Sample, error) {
	if config.LooksLikeJSON(line) {
		return DecodeSample([]byte(line))
	}
	cr := csv.NewReader(strings.NewReader(line))
	cr.TrimLeadingSpace = true
	record, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSample, err)
	}
	if r.header == nil && looksLikeHeader(record) {
		r.header = normalizeHeader(record)
		return nil, nil
	}
	names := r.header
	if names == nil {
		names = []string{"gas", "temp", "hum", "press"}
	}
	obj := make(map[string]any, len(names))
	for i, name := range names {
		if i >= len(record) {
			break
		}
		obj[name] = record[i]
	}
	return SampleFromMap(obj)
}

func (r *ReplaySource) Close() error {
	if r.file == nil {
		return errors.New("replay source not open")
	}
	return r.file.Close()
}

func looksLikeHeader(record []string) bool {
	for _, v := range record {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "gas", "gas_ohms", "temp", "temperature", "hum", "humidity", "press", "pressure":
			return true
		}
	}
	return false
}

func normalizeHeader(record []string) []string {
	out := make([]string, len(record))
	for i, v := range record {
		out[i] = strings.ToLower(strings.TrimSpace(v))
	}
	return out
}
