package rewardapi

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

const maxLineSize = 64 * 1024 * 1024

// ReadDataset reads a JSONL file with one object per line. Blank lines are skipped.
func ReadDataset(path string) ([]map[string]any, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening dataset %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 1024*1024), maxLineSize)

	var rows []map[string]any
	for lineNum := 1; scanner.Scan(); lineNum++ {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var row map[string]any
		if err := json.Unmarshal(line, &row); err != nil {
			return nil, fmt.Errorf("error parsing line %d of %s: %w", lineNum, path, err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading dataset %s: %w", path, err)
	}

	return rows, nil
}

// SamplesFromRows builds samples from rows that carry the completion inline.
// promptColumn is optional.
func SamplesFromRows(rows []map[string]any, completionColumn, promptColumn string) ([]Sample, error) {
	samples := make([]Sample, 0, len(rows))
	for i, row := range rows {
		completion, ok := row[completionColumn].(string)
		if !ok {
			return nil, fmt.Errorf("row %d has no string column %q", i, completionColumn)
		}

		prompt, _ := row[promptColumn].(string)
		samples = append(samples, Sample{Prompt: prompt, Completion: completion, Row: row})
	}
	return samples, nil
}
