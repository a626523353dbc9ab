package common

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/petrel-mail/petrel/internal/datamark"
	"github.com/petrel-mail/petrel/internal/server"
)

// MarkedResult serializes a tool payload, routes it through the datamarking
// session for the given operation, and returns it as a text result. Every
// tool whose results carry externally authored text returns through this
// helper; operations without a mark domain pass through unchanged.
func MarkedResult(ctx context.Context, sc *server.ServerContext, operation string, payload any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize %s result: %w", operation, err)
	}

	// Marking operates on the generic JSON shape, not the typed structs.
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("failed to reshape %s result: %w", operation, err)
	}

	recordDetections(ctx, sc, string(raw))

	marked := sc.Marks().MarkToolResult(generic, operation)
	out, err := encodeIndented(marked)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize marked %s result: %w", operation, err)
	}

	return mcp.NewToolResultText(out), nil
}

// encodeIndented serializes payload without HTML escaping. The datamark
// delimiters use angle brackets; the default escaper would rewrite them as
// < sequences and break the documented delimiter form.
func encodeIndented(payload any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// recordDetections counts fired detection rules for the whole serialized
// payload. The marker re-runs detection per field to place warnings; this
// single pass only feeds the datamark_detections_total metric.
func recordDetections(ctx context.Context, sc *server.ServerContext, text string) {
	metrics := sc.Metrics()
	if metrics == nil {
		return
	}
	detection := datamark.DetectSuspicious(text)
	for _, match := range detection.Matches {
		metrics.RecordDatamarkDetection(ctx, match.Pattern)
	}
}

// JSONResult returns payload as indented JSON. For results that carry no
// externally authored text (mailbox metadata, session info).
func JSONResult(payload any) (*mcp.CallToolResult, error) {
	out, err := encodeIndented(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize result: %w", err)
	}
	return mcp.NewToolResultText(out), nil
}
