package gateway

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/petrel-mail/petrel/internal/logging"
	"github.com/petrel-mail/petrel/internal/policy"
	"github.com/petrel-mail/petrel/internal/taxonomy"
)

const (
	toolCallMethod = "tools/call"
	toolListMethod = "tools/list"

	// invalidRequestCode is the JSON-RPC "Invalid Request" error code.
	invalidRequestCode = -32600
)

// DenialObserver is notified of every denied request, for audit logging
// and metrics.
type DenialObserver func(identity, operation, reason string)

// Gateway checks inbound tool calls and filters outbound tool listings.
type Gateway struct {
	engine   *policy.Engine
	logger   *slog.Logger
	onDenial DenialObserver
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) { g.logger = logger }
}

// WithDenialObserver registers a callback invoked on every denial.
func WithDenialObserver(observer DenialObserver) Option {
	return func(g *Gateway) { g.onDenial = observer }
}

// New creates a Gateway over a policy engine.
func New(engine *policy.Engine, opts ...Option) *Gateway {
	g := &Gateway{
		engine: engine,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// DenialError is the error member of a denial response.
type DenialError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// DenialResponse is a JSON-RPC error response produced when a request is
// denied. It is returned in-band with HTTP 200.
type DenialResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Error   DenialError     `json:"error"`
}

func newDenial(id json.RawMessage, message string) *DenialResponse {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	return &DenialResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: DenialError{
			Code:    invalidRequestCode,
			Message: message,
		},
	}
}

// rpcMessage is the subset of a JSON-RPC message the gateway inspects.
type rpcMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"params"`
}

// CheckRequest inspects a raw JSON-RPC body for the given caller. It
// returns nil when the request may proceed, or a denial response to send
// back instead. Batches are checked eagerly: the first denied message ends
// the check and its id is echoed.
//
// An empty body passes (nothing to check). A body that is not valid JSON
// is denied.
func (g *Gateway) CheckRequest(ctx context.Context, body []byte, identity string) *DenialResponse {
	if len(body) == 0 {
		return nil
	}

	messages, ok := parseMessages(body)
	if !ok {
		g.observeDenial(identity, "", "could not parse request body")
		return newDenial(nil, "Permission check failed: could not parse request body")
	}

	user := g.engine.UserConfig(ctx, identity)
	for _, message := range messages {
		if message.Method != toolCallMethod {
			continue
		}
		result := policy.IsAllowed(user, message.Params.Name, message.Params.Arguments)
		if result.Allowed {
			continue
		}
		g.observeDenial(identity, message.Params.Name, result.Error)
		return newDenial(message.ID, result.Error)
	}
	return nil
}

func parseMessages(body []byte) ([]rpcMessage, bool) {
	trimmed := firstNonSpace(body)
	if trimmed == '[' {
		var batch []rpcMessage
		if err := json.Unmarshal(body, &batch); err != nil {
			return nil, false
		}
		return batch, true
	}

	var single rpcMessage
	if err := json.Unmarshal(body, &single); err != nil {
		return nil, false
	}
	return []rpcMessage{single}, true
}

func firstNonSpace(body []byte) byte {
	for _, b := range body {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b
	}
	return 0
}

func (g *Gateway) observeDenial(identity, operation, reason string) {
	g.logger.Warn("request denied",
		logging.UserHash(identity),
		logging.Operation(operation),
		"reason", reason,
	)
	if g.onDenial != nil {
		g.onDenial(identity, operation, reason)
	}
}

// listingResponse mirrors the tools/list result shape. Unknown result
// fields are preserved through rawResult.
type listingResponse struct {
	JSONRPC string          `json:"jsonrpc,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
}

// FilterListingResponse prunes a tools/list response body to the caller's
// visible operations. Bodies that are not listing responses come back
// unchanged with changed=false. Operations absent from the taxonomy stay
// visible.
func (g *Gateway) FilterListingResponse(ctx context.Context, body []byte, identity string) ([]byte, bool) {
	if len(body) == 0 {
		return body, false
	}

	var response listingResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return body, false
	}
	if len(response.Result) == 0 {
		return body, false
	}

	var result map[string]json.RawMessage
	if err := json.Unmarshal(response.Result, &result); err != nil {
		return body, false
	}
	rawTools, ok := result["tools"]
	if !ok {
		return body, false
	}

	var tools []map[string]json.RawMessage
	if err := json.Unmarshal(rawTools, &tools); err != nil {
		return body, false
	}

	user := g.engine.UserConfig(ctx, identity)
	visible := policy.VisibleOperations(user)

	filtered := make([]map[string]json.RawMessage, 0, len(tools))
	for _, tool := range tools {
		var name string
		if raw, ok := tool["name"]; ok {
			if err := json.Unmarshal(raw, &name); err != nil {
				filtered = append(filtered, tool)
				continue
			}
		}
		// Names outside the taxonomy stay visible, matching the
		// fail-open posture for uncategorized operations.
		if _, mapped := taxonomy.CategoryFor(name); !mapped || visible[name] {
			filtered = append(filtered, tool)
		}
	}
	if len(filtered) == len(tools) {
		return body, false
	}

	newTools, err := json.Marshal(filtered)
	if err != nil {
		return body, false
	}
	result["tools"] = newTools
	newResult, err := json.Marshal(result)
	if err != nil {
		return body, false
	}
	response.Result = newResult
	rewritten, err := json.Marshal(response)
	if err != nil {
		return body, false
	}
	return rewritten, true
}
