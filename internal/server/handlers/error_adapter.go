package handlers

import (
	"net/http"

	apperrors "github.com/trendrelay/trendrelay/internal/errors"
)

// ErrorResponder writes err to the client as an error envelope.
type ErrorResponder func(w http.ResponseWriter, r *http.Request, err error)

func defaultErrorResponder(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.RespondWithError(w, r, err)
}

// SetErrorResponder routes probe failures through fn. A nil fn restores the
// package default.
func (hm *HealthManager) SetErrorResponder(fn ErrorResponder) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.respond = fn
}

func (hm *HealthManager) respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	hm.mu.RLock()
	fn := hm.respond
	hm.mu.RUnlock()

	if fn == nil {
		fn = defaultErrorResponder
	}
	fn(w, r, err)
}
