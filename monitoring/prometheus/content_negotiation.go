package prometheus

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/golang/gddo/httputil"
)

const (
	contentTypePlainText = "text/plain"
	contentTypeJSON      = "application/json"
)

// wantsJSON reports whether the request's Accept header prefers JSON over
// the plain-text default.
func wantsJSON(r *http.Request) bool {
	offers := []string{contentTypePlainText, contentTypeJSON}
	return httputil.NegotiateContentType(r, offers, contentTypePlainText) == contentTypeJSON
}

// writeNegotiated renders a health payload in the negotiated content type:
// the plain-text buffer verbatim, or the structured entries wrapped in an
// {error, data} envelope.
func writeNegotiated(w http.ResponseWriter, r *http.Request, text bytes.Buffer, structured interface{}) error {
	if !wantsJSON(r) {
		if _, err := w.Write(text.Bytes()); err != nil {
			return fmt.Errorf("could not write response body: %w", err)
		}
		return nil
	}
	w.Header().Set("Content-Type", contentTypeJSON)
	envelope := struct {
		Err  string      `json:"error"`
		Data interface{} `json:"data"`
	}{Data: structured}
	return json.NewEncoder(w).Encode(envelope)
}
