package batch

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"testing"
)

func TestParseStringOrArray(t *testing.T) {
	tests := []struct {
		name    string
		input   interface{}
		want    []string
		wantErr bool
	}{
		{
			name:  "single id",
			input: "Ma4f1",
			want:  []string{"Ma4f1"},
		},
		{
			name:  "array of ids",
			input: []interface{}{"Ma4f1", "Mb2c8", "Mc9e0"},
			want:  []string{"Ma4f1", "Mb2c8", "Mc9e0"},
		},
		{
			name:    "nil input",
			input:   nil,
			wantErr: true,
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: true,
		},
		{
			name:    "empty array",
			input:   []interface{}{},
			wantErr: true,
		},
		{
			name:    "array with non-string",
			input:   []interface{}{"Ma4f1", 123, "Mc9e0"},
			wantErr: true,
		},
		{
			name:    "array with empty id",
			input:   []interface{}{"Ma4f1", "", "Mc9e0"},
			wantErr: true,
		},
		{
			name:    "non-string non-array",
			input:   123,
			wantErr: true,
		},
		{
			name:  "JSON array sent as string",
			input: `["Ma4f1", "Mb2c8", "Mc9e0"]`,
			want:  []string{"Ma4f1", "Mb2c8", "Mc9e0"},
		},
		{
			name:  "JSON string array with filenames",
			input: `["notes.pdf", "agenda.pdf"]`,
			want:  []string{"notes.pdf", "agenda.pdf"},
		},
		{
			name:  "JSON string single element array",
			input: `["Ma4f1"]`,
			want:  []string{"Ma4f1"},
		},
		{
			name:    "JSON string empty array",
			input:   `[]`,
			wantErr: true,
		},
		{
			name:    "JSON string array with empty id",
			input:   `["Ma4f1", ""]`,
			wantErr: true,
		},
		{
			name:  "malformed JSON stays a single id",
			input: `[not json`,
			want:  []string{`[not json`},
		},
		{
			name:  "bracketed filename stays a single id",
			input: `[draft] report.pdf`,
			want:  []string{`[draft] report.pdf`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStringOrArray(tt.input, "emailId")
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseStringOrArray() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseStringOrArray() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProcessBatchContinuesPastFailures(t *testing.T) {
	ids := []string{"Ma4f1", "Mb2c8", "Mc9e0"}

	results := ProcessBatch(ids, func(id string) (string, error) {
		if id == "Mb2c8" {
			return "", errors.New("email not found")
		}
		return fmt.Sprintf("Email %s archived", id), nil
	})

	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	if results[0].Status != "success" || results[0].Result != "Email Ma4f1 archived" {
		t.Errorf("unexpected first result: %+v", results[0])
	}
	if results[1].Status != "error" || results[1].Error != "email not found" {
		t.Errorf("unexpected second result: %+v", results[1])
	}
	if results[2].Status != "success" {
		t.Errorf("unexpected third result: %+v", results[2])
	}
}

func TestFormatResults(t *testing.T) {
	results := []Result{
		{ID: "Ma4f1", Status: "success", Result: "Email Ma4f1 archived"},
		{ID: "Mb2c8", Status: "success", Result: "Email Mb2c8 archived"},
		{ID: "Mc9e0", Status: "error", Error: "email not found"},
	}

	var summary Summary
	if err := json.Unmarshal([]byte(FormatResults(results)), &summary); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}

	if summary.Total != 3 {
		t.Errorf("Total = %d, want 3", summary.Total)
	}
	if summary.Successful != 2 {
		t.Errorf("Successful = %d, want 2", summary.Successful)
	}
	if summary.Failed != 1 {
		t.Errorf("Failed = %d, want 1", summary.Failed)
	}
	if len(summary.Results) != 3 {
		t.Errorf("len(Results) = %d, want 3", len(summary.Results))
	}
}
