/*
Package bot turns platform events into replies.

The Router is a flat dispatch table over the closed Event union. The only state kept
across events is the user's label mode; everything else is handled per event. Every
event is answered exactly once: handlers compute their reply, and unrecoverable
failures are answered with a fallback text before the error is returned.
*/
package bot

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/url"

	"github.com/rs/zerolog"

	"labelbot/internal/app/compose"
	"labelbot/internal/app/inquiry"
	"labelbot/internal/app/label"
	"labelbot/internal/app/mode"
	"labelbot/internal/pkg/logx"
)

var (
	// ErrStoreUnavailable marks failures of the mode/inquiry backend. Callers map it
	// to a 5xx so the platform may redeliver.
	ErrStoreUnavailable = errors.New("bot: store unavailable")

	// ErrUnsupportedEvent is returned for Event values outside the known union.
	ErrUnsupportedEvent = errors.New("bot: unsupported event")

	// ErrMissingUser is returned for events that carry no user id.
	ErrMissingUser = errors.New("bot: event has no user id")
)

// Replier sends the single reply allowed per event.
type Replier interface {
	Reply(ctx context.Context, replyToken string, msgs ...Message) error
}

// ContentFetcher downloads the bytes of a user's photo.
type ContentFetcher interface {
	FetchContent(ctx context.Context, messageID string) (io.ReadCloser, error)
}

// RichMenuLinker switches the menu shown to a user.
type RichMenuLinker interface {
	LinkRichMenu(ctx context.Context, userID, richMenuID string) error
}

// Compositor stamps the overlay at overlayPath onto the photo read from base.
type Compositor interface {
	Compose(base io.Reader, overlayPath string) (image.Image, error)
}

// Publisher stores a composed image and returns its public URL.
type Publisher interface {
	Publish(ctx context.Context, img image.Image) (string, error)
}

// Limiter throttles image processing per user.
type Limiter interface {
	Allow(key string) bool
}

// Deps are the Router's collaborators. RichMenus and Limiter are optional.
type Deps struct {
	Modes      *mode.Store
	Inquiries  *inquiry.Log
	Catalog    *label.Catalog
	Replier    Replier
	Content    ContentFetcher
	Compositor Compositor
	Publisher  Publisher
	RichMenus  RichMenuLinker
	Limiter    Limiter

	// PublicBaseURL prefixes overlay preview links (<base>/imgs/<overlay>).
	PublicBaseURL  string
	FeatureFormURI string
}

// Router dispatches events to their handlers.
type Router struct {
	deps Deps
}

// NewRouter returns a Router using deps.
func NewRouter(deps Deps) *Router {
	return &Router{deps: deps}
}

// Handle processes one event and sends its reply. The returned error reports
// what went wrong even though the user already received a fallback text; a
// failed reply is reported too.
func (r *Router) Handle(ctx context.Context, ev Event) error {
	m := ev.EventMeta()
	log := logx.Ctx(ctx).With().Str("user", logx.UserTag(m.UserID)).Logger()
	ctx = log.WithContext(ctx)

	var (
		msgs []Message
		err  error
	)

	switch e := ev.(type) {
	case FollowEvent:
		msgs, err = r.handleFollow(ctx, e)
	case TextEvent:
		msgs, err = r.handleText(ctx, e)
	case ImageEvent:
		msgs, err = r.handleImage(ctx, e)
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedEvent, ev)
	}

	if err != nil {
		log.Error().Err(err).Str("event", fmt.Sprintf("%T", ev)).Msg("Event handling failed")
		if len(msgs) == 0 {
			msgs = []Message{Text{Text: failureText}}
		}
	}

	if replyErr := r.deps.Replier.Reply(ctx, m.ReplyToken, msgs...); replyErr != nil {
		log.Error().Err(replyErr).Msg("Reply failed")
		return errors.Join(err, fmt.Errorf("reply: %w", replyErr))
	}
	return err
}

func (r *Router) handleFollow(ctx context.Context, e FollowEvent) ([]Message, error) {
	if e.UserID == "" {
		return nil, ErrMissingUser
	}

	created, err := r.deps.Modes.Init(ctx, e.UserID)
	if err != nil {
		return nil, storeErr(err)
	}
	zerolog.Ctx(ctx).Info().Bool("new_user", created).Msg("Followed")

	entry, err := r.currentEntry(ctx, e.UserID)
	if err != nil {
		return nil, err
	}
	r.linkRichMenu(ctx, e.UserID, entry)

	return []Message{welcomeCard()}, nil
}

func (r *Router) handleText(ctx context.Context, e TextEvent) ([]Message, error) {
	if e.Text == FeatureRequestTrigger {
		return []Message{featureRequestCard(r.deps.FeatureFormURI)}, nil
	}

	if inquiry.IsSubmission(e.Text) {
		n, err := r.deps.Inquiries.Append(ctx, e.Text)
		if err != nil {
			return nil, storeErr(err)
		}
		zerolog.Ctx(ctx).Info().Int64("inquiries", n).Msg("Inquiry recorded")
		return []Message{Text{Text: inquiryAckText}}, nil
	}

	if e.UserID == "" {
		return []Message{Text{Text: missingUserText}}, ErrMissingUser
	}

	idx, err := r.deps.Catalog.IndexOf(e.Text)
	if errors.Is(err, label.ErrUnrecognizedLabel) {
		entry, err := r.currentEntry(ctx, e.UserID)
		if err != nil {
			return nil, err
		}
		return []Message{currentModeText(entry.Text)}, nil
	}
	if err != nil {
		return nil, err
	}

	entry, err := r.deps.Catalog.Entry(idx)
	if err != nil {
		return nil, err
	}
	if err := r.deps.Modes.Set(ctx, e.UserID, idx); err != nil {
		return nil, storeErr(err)
	}
	zerolog.Ctx(ctx).Info().Stringer("label", idx).Msg("Label changed")
	r.linkRichMenu(ctx, e.UserID, entry)

	return []Message{labelChangedCard(entry.Text, r.previewURL(entry))}, nil
}

func (r *Router) handleImage(ctx context.Context, e ImageEvent) ([]Message, error) {
	log := zerolog.Ctx(ctx)

	if e.UserID == "" {
		return []Message{Text{Text: missingUserText}}, ErrMissingUser
	}
	if r.deps.Limiter != nil && !r.deps.Limiter.Allow(e.UserID) {
		log.Warn().Msg("Image rate limit exceeded")
		return []Message{Text{Text: rateLimitedText}}, nil
	}

	entry, err := r.currentEntry(ctx, e.UserID)
	if err != nil {
		return nil, err
	}
	overlayPath, err := r.deps.Catalog.Resolve(entry.Index)
	if err != nil {
		return nil, err
	}

	content, err := r.deps.Content.FetchContent(ctx, e.MessageID)
	if err != nil {
		return nil, fmt.Errorf("fetch content: %w", err)
	}
	defer content.Close()

	img, err := r.deps.Compositor.Compose(content, overlayPath)
	switch {
	case errors.Is(err, compose.ErrDecode), errors.Is(err, compose.ErrTooLarge):
		log.Warn().Err(err).Msg("Photo rejected")
		return []Message{Text{Text: unsupportedImageText}}, nil
	case err != nil:
		return nil, err
	}

	resultURL, err := r.deps.Publisher.Publish(ctx, img)
	if err != nil {
		return nil, err
	}
	log.Info().Stringer("label", entry.Index).Msg("Photo composed")

	return []Message{composedCard(resultURL)}, nil
}

// currentEntry reads the user's mode, initializing it when unset. A stored value
// that no longer names a label is reset to the default.
func (r *Router) currentEntry(ctx context.Context, userID string) (label.Entry, error) {
	idx, err := r.deps.Modes.GetOrInit(ctx, userID)
	if err == nil {
		var entry label.Entry
		if entry, err = r.deps.Catalog.Entry(idx); err == nil {
			return entry, nil
		}
	}
	if !errors.Is(err, label.ErrInvalidLabel) {
		return label.Entry{}, storeErr(err)
	}

	zerolog.Ctx(ctx).Warn().Err(err).Msg("Stored mode is not a label, resetting")
	if err := r.deps.Modes.Set(ctx, userID, label.DefaultIndex); err != nil {
		return label.Entry{}, storeErr(err)
	}
	return r.deps.Catalog.Entry(label.DefaultIndex)
}

func (r *Router) linkRichMenu(ctx context.Context, userID string, entry label.Entry) {
	if r.deps.RichMenus == nil || entry.RichMenuID == "" {
		return
	}
	if err := r.deps.RichMenus.LinkRichMenu(ctx, userID, entry.RichMenuID); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("rich_menu", entry.RichMenuID).Msg("Rich menu link failed")
	}
}

func (r *Router) previewURL(entry label.Entry) string {
	if r.deps.PublicBaseURL == "" {
		return ""
	}
	return r.deps.PublicBaseURL + "/imgs/" + url.PathEscape(entry.Overlay)
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
