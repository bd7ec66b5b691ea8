package server

import (
	"net/http"

	apperrors "github.com/trendrelay/trendrelay/internal/errors"
)

// HandleError writes err as a standard error envelope.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.RespondWithError(w, r, err)
}
