/*
Package publish stores composed images and turns them into shareable URLs.

Every result gets a fresh unguessable key under a per-day bucket
(tmp/YYYYMMDD/<id>_overlay.jpg), so the Sweeper can expire whole days at once.
*/
package publish

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"
	"time"

	"labelbot/internal/app/compose"
	"labelbot/internal/app/storage"
	"labelbot/internal/pkg/randx"
)

const (
	// RootPrefix holds every day bucket.
	RootPrefix = "tmp/"

	// DayLayout names day buckets.
	DayLayout = "20060102"

	contentType = "image/jpeg"
	keySuffix   = "_overlay.jpg"
)

// Publisher encodes images and uploads them to a StorageService.
type Publisher struct {
	store storage.StorageService
	now   func() time.Time
	newID func() string
}

// NewPublisher returns a Publisher writing to store.
func NewPublisher(store storage.StorageService) *Publisher {
	return &Publisher{
		store: store,
		now:   time.Now,
		newID: randx.ResultID,
	}
}

// Key builds the object key for a result created at t.
func Key(t time.Time, id string) string {
	return RootPrefix + t.UTC().Format(DayLayout) + "/" + id + keySuffix
}

// IsKey reports whether key has the shape Key produces.
func IsKey(key string) bool {
	rest, ok := strings.CutPrefix(key, RootPrefix)
	if !ok {
		return false
	}
	day, name, ok := strings.Cut(rest, "/")
	if !ok {
		return false
	}
	if _, err := time.Parse(DayLayout, day); err != nil {
		return false
	}
	id, ok := strings.CutSuffix(name, keySuffix)
	return ok && randx.IsValidResultID(id)
}

// Publish encodes img as JPEG, stores it under a new key and returns its URL.
// Publishing the same image twice yields two distinct URLs.
func (p *Publisher) Publish(ctx context.Context, img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := compose.Encode(&buf, img); err != nil {
		return "", err
	}

	key := Key(p.now(), p.newID())
	if err := p.store.Put(ctx, key, &buf, contentType); err != nil {
		return "", fmt.Errorf("publish: %w", err)
	}

	u, err := p.store.URL(ctx, key)
	if err != nil {
		return "", fmt.Errorf("publish: %w", err)
	}
	return u, nil
}
