package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/himanishpuri/OscilloBP/pkg/models"
)

var errNoSamples = errors.New("recording contains no pressure samples")

// readRecording loads a recording from a JSON or CSV file. JSON may be a
// bare array of pressures or an object with pressure_data and an optional
// sampling_rate. CSV takes the last column of every row, skipping a header.
func readRecording(path string) (models.Capture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Capture{}, err
	}

	var c models.Capture
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		c.Samples, err = parseCSV(bytes.NewReader(data))
	default:
		c, err = parseJSON(data)
	}
	if err != nil {
		return models.Capture{}, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(c.Samples) == 0 {
		return models.Capture{}, fmt.Errorf("reading %s: %w", path, errNoSamples)
	}
	return c, nil
}

func parseJSON(data []byte) (models.Capture, error) {
	var c models.Capture
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		err := json.Unmarshal(trimmed, &c.Samples)
		return c, err
	}
	err := json.Unmarshal(trimmed, &c)
	return c, err
}

func parseCSV(r io.Reader) ([]float64, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var out []float64
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if len(rec) == 0 {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[len(rec)-1]), 64)
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, v)
	}
}

func writeRecording(w io.Writer, c models.Capture) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}
