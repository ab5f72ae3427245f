/*
Package errs provides custom error types and application-level error code constants.

These error codes identify request-level failures of the HTTP surface (webhook
callback, static assets, admin API) both in logs and in JSON responses.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrInvalidPayload indicates that the webhook body could not be parsed.
	ErrInvalidPayload = 1003

	// ErrRequestEntityTooLarge indicates that the request body size exceeded the server limit.
	ErrRequestEntityTooLarge = 1006

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007
)

// 3xxx: Authentication and Signature Errors
const (
	// ErrInvalidSignature indicates that a webhook delivery did not carry a valid platform signature.
	ErrInvalidSignature = 3001

	// ErrUnauthorized indicates a missing or invalid admin token.
	ErrUnauthorized = 3101
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000

	// ErrStoreUnavailable indicates that the key-value store could not serve the request.
	// Returned as 503 so the platform may redeliver the event.
	ErrStoreUnavailable = 5001
)
