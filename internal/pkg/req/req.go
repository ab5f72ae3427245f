/*
Package req provides helpers for reading inbound HTTP requests.

Webhook bodies are parsed by the platform SDK, so this package only bounds how much
of a request body the server is willing to read.
*/
package req

import (
	"errors"
	"net/http"

	"labelbot/internal/pkg/errs"
)

// MaxWebhookBodySize caps a single webhook delivery (1 MB). Deliveries carry
// event metadata only; image bytes are fetched separately.
const MaxWebhookBodySize int64 = 1 << 20

// LimitBody wraps the request body with http.MaxBytesReader.
func LimitBody(w http.ResponseWriter, r *http.Request, limit int64) {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
}

// ClassifyBodyError maps a body read failure to the matching CustomError.
func ClassifyBodyError(err error) *errs.CustomError {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return errs.NewError(errs.ErrRequestEntityTooLarge, err)
	}
	return errs.NewError(errs.ErrInvalidPayload, err)
}
