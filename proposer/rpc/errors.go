package rpc

import (
	"encoding/json"
	"net/http"

	"github.com/latticelabs/lattice/proposer/db/iface"
	"github.com/latticelabs/lattice/proposer/types"
	"github.com/pkg/errors"
)

// errorJson is the error payload shape shared by every endpoint.
type errorJson struct {
	Status  int          `json:"status"`
	Error   string       `json:"error"`
	Details *errorDetail `json:"details,omitempty"`
}

// errorDetail carries the offending field for validation failures.
type errorDetail struct {
	Field   string `json:"field,omitempty"`
	Value   string `json:"value,omitempty"`
	Context string `json:"context,omitempty"`
}

// httpStatus maps pipeline error kinds onto status codes. Knowledge of HTTP
// stays at this boundary; the pipeline itself only knows kinds.
func httpStatus(err error) int {
	if errors.Is(err, iface.ErrNotFound) {
		return http.StatusNotFound
	}
	switch types.KindOf(err) {
	case types.KindValidation, types.KindInsufficientBalance, types.KindIntentionExpired,
		types.KindNameUnresolved, types.KindMultiSourceUnsupported, types.KindDepositInsufficient:
		return http.StatusBadRequest
	case types.KindSignatureInvalid:
		return http.StatusUnauthorized
	case types.KindUnauthorized, types.KindNoVault, types.KindAmbiguousVault:
		return http.StatusForbidden
	case types.KindQueueFull:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as the canonical error payload. Internal causes
// are logged for the operator and kept out of the response.
func writeError(w http.ResponseWriter, err error) {
	status := httpStatus(err)
	body := &errorJson{Status: status, Error: err.Error()}
	if status == http.StatusInternalServerError {
		log.WithError(err).Error("Request failed")
		body.Error = types.KindInternal.String()
	}
	var perr *types.Error
	if errors.As(err, &perr) && perr.Kind == types.KindValidation {
		body.Details = &errorDetail{Field: perr.Field, Value: perr.Value, Context: perr.Context}
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("Could not encode response")
	}
}
