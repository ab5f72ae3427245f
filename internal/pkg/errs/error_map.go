/*
Package errs provides custom error types and application-level error code constants.

This file maps error codes to their CustomError template (user message and HTTP status).
*/
package errs

import "net/http"

// errorMap stores the CustomError template for every application error code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:         {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrInvalidPayload:        {Code: ErrInvalidPayload, Message: "Malformed webhook payload.", Status: http.StatusBadRequest},
	ErrRequestEntityTooLarge: {Code: ErrRequestEntityTooLarge, Message: "Request size is too large.", Status: http.StatusRequestEntityTooLarge},
	ErrRateLimitExceeded:     {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 3xxx: Authentication and Signature Errors
	ErrInvalidSignature: {Code: ErrInvalidSignature, Message: "Invalid signature.", Status: http.StatusBadRequest},
	ErrUnauthorized:     {Code: ErrUnauthorized, Message: "Admin token required.", Status: http.StatusUnauthorized},

	// 5xxx: Internal System Errors
	ErrUnknown:          {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrStoreUnavailable: {Code: ErrStoreUnavailable, Message: "Storage temporarily unavailable.", Status: http.StatusServiceUnavailable},
}
