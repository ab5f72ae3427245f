// Package inquiry keeps the append-only log of feature-request submissions.
package inquiry

import (
	"context"
	"fmt"
	"strings"

	"labelbot/internal/app/kv"
)

const (
	// ListKey is the shared list all submissions are appended to.
	ListKey = "inquiry"

	// SubmissionPrefix marks a message sent by the feature-request form.
	SubmissionPrefix = "送信完了"
)

// IsSubmission reports whether text is a completed form submission.
func IsSubmission(text string) bool {
	return strings.HasPrefix(text, SubmissionPrefix)
}

// Log appends to and reads the inquiry list.
type Log struct {
	kv kv.Store
}

// NewLog returns a Log on top of the given key-value backend.
func NewLog(s kv.Store) *Log {
	return &Log{kv: s}
}

// Append stores the full submission text and returns the new log length.
func (l *Log) Append(ctx context.Context, text string) (int64, error) {
	n, err := l.kv.RPush(ctx, ListKey, text)
	if err != nil {
		return 0, fmt.Errorf("append inquiry: %w", err)
	}
	return n, nil
}

// List returns every submission, oldest first.
func (l *Log) List(ctx context.Context) ([]string, error) {
	items, err := l.kv.LRange(ctx, ListKey, 0, -1)
	if err != nil {
		return nil, fmt.Errorf("list inquiries: %w", err)
	}
	return items, nil
}
