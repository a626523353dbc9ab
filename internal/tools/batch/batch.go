package batch

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Result is the outcome of one item within a batch call.
type Result struct {
	ID     string `json:"id"`
	Status string `json:"status"` // "success" or "error"
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Summary aggregates the per-item results of a batch call.
type Summary struct {
	Total      int      `json:"total"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Results    []Result `json:"results"`
}

// ParseStringOrArray normalizes a tool argument that may arrive as a single
// id, a JSON array of ids, or a JSON array serialized into a string. Models
// routinely send the last form, so a string that parses as a JSON string
// array is expanded; any other string stays a single element.
func ParseStringOrArray(param interface{}, paramName string) ([]string, error) {
	switch v := param.(type) {
	case nil:
		return nil, fmt.Errorf("%s is required", paramName)
	case string:
		if v == "" {
			return nil, fmt.Errorf("%s cannot be empty", paramName)
		}
		if ids, ok := parseJSONStringArray(v); ok {
			return validateIDs(ids, paramName)
		}
		return []string{v}, nil
	case []interface{}:
		ids := make([]string, 0, len(v))
		for i, item := range v {
			id, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s[%d] must be a string", paramName, i)
			}
			if id == "" {
				return nil, fmt.Errorf("%s[%d] cannot be empty", paramName, i)
			}
			ids = append(ids, id)
		}
		return validateIDs(ids, paramName)
	default:
		return nil, fmt.Errorf("%s must be a string or array of strings", paramName)
	}
}

func parseJSONStringArray(s string) ([]string, bool) {
	if !strings.HasPrefix(strings.TrimSpace(s), "[") {
		return nil, false
	}
	var ids []string
	if err := json.Unmarshal([]byte(s), &ids); err != nil {
		return nil, false
	}
	return ids, true
}

func validateIDs(ids []string, paramName string) ([]string, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%s cannot be empty", paramName)
	}
	for i, id := range ids {
		if id == "" {
			return nil, fmt.Errorf("%s[%d] cannot be empty", paramName, i)
		}
	}
	return ids, nil
}

// ProcessBatch applies fn to each id in order. Failures are captured per
// item; one bad id never aborts the rest of the batch.
func ProcessBatch(ids []string, fn func(id string) (string, error)) []Result {
	results := make([]Result, 0, len(ids))
	for _, id := range ids {
		message, err := fn(id)
		if err != nil {
			results = append(results, Result{ID: id, Status: "error", Error: err.Error()})
			continue
		}
		results = append(results, Result{ID: id, Status: "success", Result: message})
	}
	return results
}

// FormatResults renders the batch summary as indented JSON for the tool
// response.
func FormatResults(results []Result) string {
	summary := Summary{Total: len(results), Results: results}
	for _, r := range results {
		if r.Status == "success" {
			summary.Successful++
		} else {
			summary.Failed++
		}
	}
	out, _ := json.MarshalIndent(summary, "", "  ")
	return string(out)
}
