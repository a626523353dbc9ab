package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/petrel-mail/petrel/internal/actionurl"
	"github.com/petrel-mail/petrel/internal/logging"
)

// actionHandler serves the one-shot signed links embedded in the digest
// page. The signature is the sole authorization: the nonce is consumed
// before the mail action runs, so a link that reaches the mail call has
// already been spent.
func (s *HTTPServer) actionHandler() http.Handler {
	issuer := actionurl.NewIssuer(s.config.ActionKey, s.sc.Store(), s.config.BaseURL)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		query := r.URL.Query()
		action := actionurl.Action(query.Get("op"))
		itemID := query.Get("id")
		auxID := query.Get("aux")
		signature := query.Get("sig")

		expiry, err := strconv.ParseInt(query.Get("exp"), 10, 64)
		if err != nil || !action.Valid() || itemID == "" || signature == "" {
			http.Error(w, "malformed action link", http.StatusBadRequest)
			return
		}

		if err := issuer.Consume(r.Context(), action, itemID, auxID, expiry, signature); err != nil {
			status := http.StatusForbidden
			message := "this link is not valid"
			switch {
			case errors.Is(err, actionurl.ErrExpired):
				status = http.StatusGone
				message = "this link has expired"
			case errors.Is(err, actionurl.ErrAlreadyUsed):
				status = http.StatusGone
				message = "this link has already been used"
			}
			http.Error(w, message, status)
			return
		}

		client := s.sc.ClientForAccount(s.config.ActionAccount)
		if client == nil {
			http.Error(w, "mail account unavailable", http.StatusServiceUnavailable)
			return
		}

		switch action {
		case actionurl.ActionArchive:
			err = client.ArchiveEmail(r.Context(), itemID)
		case actionurl.ActionDelete:
			err = client.DeleteEmail(r.Context(), itemID)
		}
		if err != nil {
			s.sc.Logger().Error("action link mail operation failed",
				logging.Operation(string(action)), logging.Err(err))
			// The nonce is already spent; the link stays dead either way.
			http.Error(w, "the mail operation failed; the link can no longer be used", http.StatusBadGateway)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<!DOCTYPE html><html><body><p>Done: message %sd.</p></body></html>", action)
	})
}
