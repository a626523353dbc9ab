package gateway

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/petrel-mail/petrel/internal/auth"
)

// Middleware wraps the MCP endpoint: it reads the request body exactly
// once, runs CheckRequest, and either answers with the denial or forwards
// the request with its body restored. Responses to requests that carried a
// tools/list message are buffered and pruned to the caller's visible
// operations before being sent.
func (g *Gateway) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, _ := auth.IdentityFromContext(r.Context())

		var body []byte
		if r.Body != nil && r.Body != http.NoBody {
			var err error
			body, err = io.ReadAll(r.Body)
			r.Body.Close()
			if err != nil {
				writeDenial(w, newDenial(nil, "Permission check failed: could not read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			r.ContentLength = int64(len(body))
		}

		if denial := g.CheckRequest(r.Context(), body, identity); denial != nil {
			writeDenial(w, denial)
			return
		}

		if !containsListing(body) {
			next.ServeHTTP(w, r)
			return
		}

		recorder := newResponseRecorder()
		next.ServeHTTP(recorder, r)

		filtered, changed := g.FilterListingResponse(r.Context(), recorder.body.Bytes(), identity)
		header := w.Header()
		for key, values := range recorder.header {
			// A rewritten body invalidates the recorded length; let the
			// transport recompute it.
			if changed && key == "Content-Length" {
				continue
			}
			header[key] = values
		}
		w.WriteHeader(recorder.status)
		w.Write(filtered)
	})
}

func containsListing(body []byte) bool {
	messages, ok := parseMessages(body)
	if !ok {
		return false
	}
	for _, message := range messages {
		if message.Method == toolListMethod {
			return true
		}
	}
	return false
}

func writeDenial(w http.ResponseWriter, denial *DenialResponse) {
	w.Header().Set("Content-Type", "application/json")
	// Denials are protocol-level errors, carried in-band with HTTP 200.
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(denial)
}

// responseRecorder buffers a downstream response so its body can be
// rewritten before reaching the wire.
type responseRecorder struct {
	header http.Header
	body   bytes.Buffer
	status int
}

func newResponseRecorder() *responseRecorder {
	return &responseRecorder{
		header: make(http.Header),
		status: http.StatusOK,
	}
}

func (r *responseRecorder) Header() http.Header {
	return r.header
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
}

func (r *responseRecorder) Write(p []byte) (int, error) {
	return r.body.Write(p)
}
