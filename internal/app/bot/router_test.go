package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labelbot/internal/app/compose"
	"labelbot/internal/app/inquiry"
	"labelbot/internal/app/kv"
	"labelbot/internal/app/label"
	"labelbot/internal/app/mode"
)

type reply struct {
	token string
	msgs  []Message
}

type fakeReplier struct {
	replies []reply
	err     error
}

func (f *fakeReplier) Reply(_ context.Context, token string, msgs ...Message) error {
	f.replies = append(f.replies, reply{token: token, msgs: msgs})
	return f.err
}

type fakeContent struct {
	data []byte
	err  error
}

func (f *fakeContent) FetchContent(context.Context, string) (io.ReadCloser, error) {
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

type link struct{ user, menu string }

type fakeLinker struct {
	links []link
	err   error
}

func (f *fakeLinker) LinkRichMenu(_ context.Context, userID, richMenuID string) error {
	f.links = append(f.links, link{userID, richMenuID})
	return f.err
}

type fakeCompositor struct {
	overlayPath string
	err         error
}

func (f *fakeCompositor) Compose(base io.Reader, overlayPath string) (image.Image, error) {
	f.overlayPath = overlayPath
	if f.err != nil {
		return nil, f.err
	}
	if _, err := io.ReadAll(base); err != nil {
		return nil, err
	}
	return image.NewNRGBA(image.Rect(0, 0, 4, 4)), nil
}

type fakePublisher struct {
	n   int
	err error
}

func (f *fakePublisher) Publish(context.Context, image.Image) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.n++
	return fmt.Sprintf("https://cdn.example.com/tmp/20240315/%d_overlay.jpg", f.n), nil
}

type denyAll struct{}

func (denyAll) Allow(string) bool { return false }

// brokenKV fails every operation, as an unreachable backend would.
type brokenKV struct{ kv.Store }

var errDown = errors.New("dial tcp 10.0.0.1:6379: connection refused")

func (brokenKV) Get(context.Context, string) (string, error)          { return "", errDown }
func (brokenKV) Set(context.Context, string, string) error            { return errDown }
func (brokenKV) SetNX(context.Context, string, string) (bool, error)  { return false, errDown }
func (brokenKV) RPush(context.Context, string, string) (int64, error) { return 0, errDown }
func (brokenKV) LRange(context.Context, string, int64, int64) ([]string, error) {
	return nil, errDown
}

type harness struct {
	router     *Router
	kv         kv.Store
	modes      *mode.Store
	inquiries  *inquiry.Log
	catalog    *label.Catalog
	replier    *fakeReplier
	content    *fakeContent
	linker     *fakeLinker
	compositor *fakeCompositor
	publisher  *fakePublisher
}

const overlayDir = "/srv/imgs"

func newHarness(t *testing.T, backend kv.Store, opts ...func(*Deps)) *harness {
	t.Helper()

	catalog, err := label.Default(overlayDir)
	require.NoError(t, err)

	h := &harness{
		kv:         backend,
		modes:      mode.NewStore(backend),
		inquiries:  inquiry.NewLog(backend),
		catalog:    catalog,
		replier:    &fakeReplier{},
		content:    &fakeContent{data: []byte("photo")},
		linker:     &fakeLinker{},
		compositor: &fakeCompositor{},
		publisher:  &fakePublisher{},
	}

	deps := Deps{
		Modes:          h.modes,
		Inquiries:      h.inquiries,
		Catalog:        catalog,
		Replier:        h.replier,
		Content:        h.content,
		Compositor:     h.compositor,
		Publisher:      h.publisher,
		RichMenus:      h.linker,
		PublicBaseURL:  "https://bot.example.com",
		FeatureFormURI: "line://app/form",
	}
	for _, o := range opts {
		o(&deps)
	}
	h.router = NewRouter(deps)
	return h
}

func meta(user string) Meta {
	return Meta{UserID: user, ReplyToken: "token-" + user}
}

// onlyReply asserts that exactly one reply was sent and returns its messages.
func (h *harness) onlyReply(t *testing.T) []Message {
	t.Helper()
	require.Len(t, h.replier.replies, 1)
	return h.replier.replies[0].msgs
}

func (h *harness) storedMode(t *testing.T, user string) string {
	t.Helper()
	v, err := h.kv.Get(context.Background(), user)
	require.NoError(t, err)
	return v
}

func TestFollowNewUser(t *testing.T) {
	h := newHarness(t, kv.NewMemory())

	err := h.router.Handle(context.Background(), FollowEvent{Meta: meta("U1")})
	require.NoError(t, err)

	assert.Equal(t, "01", h.storedMode(t, "U1"))
	assert.Equal(t, "token-U1", h.replier.replies[0].token)
	if diff := cmp.Diff([]Message{welcomeCard()}, h.onlyReply(t)); diff != "" {
		t.Errorf("reply mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []link{{"U1", "richmenu-4318d8c8dba62fc14de3fced2943e413"}}, h.linker.links)
}

func TestFollowKeepsExistingMode(t *testing.T) {
	h := newHarness(t, kv.NewMemory())
	require.NoError(t, h.modes.Set(context.Background(), "U1", 4))

	require.NoError(t, h.router.Handle(context.Background(), FollowEvent{Meta: meta("U1")}))

	assert.Equal(t, "04", h.storedMode(t, "U1"))
	assert.Equal(t, []link{{"U1", "richmenu-68ae2dde8a306b2ac5d83fe607bc5c45"}}, h.linker.links)
}

func TestLabelChangeThenCurrentMode(t *testing.T) {
	for _, entry := range mustCatalog(t).Entries() {
		t.Run(entry.Text, func(t *testing.T) {
			ctx := context.Background()
			h := newHarness(t, kv.NewMemory())

			require.NoError(t, h.router.Handle(ctx, TextEvent{Meta: meta("U1"), Text: entry.Text}))
			assert.Equal(t, entry.Index.String(), h.storedMode(t, "U1"))

			want := []Message{labelChangedCard(entry.Text, "https://bot.example.com/imgs/"+entry.Overlay)}
			if diff := cmp.Diff(want, h.onlyReply(t)); diff != "" {
				t.Errorf("reply mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, []link{{"U1", entry.RichMenuID}}, h.linker.links)

			h.replier.replies = nil
			require.NoError(t, h.router.Handle(ctx, TextEvent{Meta: meta("U1"), Text: "hello"}))
			msgs := h.onlyReply(t)
			require.Len(t, msgs, 1)
			assert.Contains(t, msgs[0].(Text).Text, "「"+entry.Text+"」")
		})
	}
}

func mustCatalog(t *testing.T) *label.Catalog {
	t.Helper()
	c, err := label.Default(overlayDir)
	require.NoError(t, err)
	return c
}

func TestSaleSelectsSecondLabel(t *testing.T) {
	h := newHarness(t, kv.NewMemory())

	require.NoError(t, h.router.Handle(context.Background(), TextEvent{Meta: meta("U1"), Text: "SALE"}))

	assert.Equal(t, "02", h.storedMode(t, "U1"))
	card := h.onlyReply(t)[0].(Card)
	assert.Contains(t, card.Title, "「SALE」")
	assert.Equal(t, "https://bot.example.com/imgs/mercari_02.png", card.HeroURL)
}

func TestFeatureRequest(t *testing.T) {
	h := newHarness(t, kv.NewMemory())

	require.NoError(t, h.router.Handle(context.Background(), TextEvent{Meta: meta("U1"), Text: FeatureRequestTrigger}))

	if diff := cmp.Diff([]Message{featureRequestCard("line://app/form")}, h.onlyReply(t)); diff != "" {
		t.Errorf("reply mismatch (-want +got):\n%s", diff)
	}
	_, err := h.kv.Get(context.Background(), "U1")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestInquirySubmission(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, kv.NewMemory())
	require.NoError(t, h.modes.Set(ctx, "U1", 3))

	require.NoError(t, h.router.Handle(ctx, TextEvent{Meta: meta("U1"), Text: "送信完了 foo"}))

	items, err := h.inquiries.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"送信完了 foo"}, items)
	assert.Equal(t, "03", h.storedMode(t, "U1"))
	assert.Equal(t, []Message{Text{Text: inquiryAckText}}, h.onlyReply(t))
	assert.Empty(t, h.linker.links)
}

func TestCurrentModeInitializesUnsetUser(t *testing.T) {
	h := newHarness(t, kv.NewMemory())

	require.NoError(t, h.router.Handle(context.Background(), TextEvent{Meta: meta("U9"), Text: "こんにちは"}))

	assert.Equal(t, "01", h.storedMode(t, "U9"))
	assert.Equal(t, []Message{currentModeText("専用")}, h.onlyReply(t))
}

func TestCorruptModeIsReset(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemory()
	require.NoError(t, backend.Set(ctx, "U1", "09"))
	h := newHarness(t, backend)

	require.NoError(t, h.router.Handle(ctx, TextEvent{Meta: meta("U1"), Text: "?"}))

	assert.Equal(t, "01", h.storedMode(t, "U1"))
	assert.Equal(t, []Message{currentModeText("専用")}, h.onlyReply(t))
}

func TestImagePipeline(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, kv.NewMemory())
	require.NoError(t, h.modes.Set(ctx, "U1", 5))

	require.NoError(t, h.router.Handle(ctx, ImageEvent{Meta: meta("U1"), MessageID: "m1"}))

	assert.Equal(t, filepath.Join(overlayDir, "mercari_05.png"), h.compositor.overlayPath)
	want := []Message{composedCard("https://cdn.example.com/tmp/20240315/1_overlay.jpg")}
	if diff := cmp.Diff(want, h.onlyReply(t)); diff != "" {
		t.Errorf("reply mismatch (-want +got):\n%s", diff)
	}
}

func TestImageUndecodable(t *testing.T) {
	h := newHarness(t, kv.NewMemory())
	h.compositor.err = fmt.Errorf("photo: %w", compose.ErrDecode)

	require.NoError(t, h.router.Handle(context.Background(), ImageEvent{Meta: meta("U1"), MessageID: "m1"}))

	assert.Equal(t, []Message{Text{Text: unsupportedImageText}}, h.onlyReply(t))
	assert.Zero(t, h.publisher.n)
}

func TestImageOverlayMissing(t *testing.T) {
	h := newHarness(t, kv.NewMemory())
	h.compositor.err = compose.ErrOverlayMissing

	err := h.router.Handle(context.Background(), ImageEvent{Meta: meta("U1"), MessageID: "m1"})

	assert.ErrorIs(t, err, compose.ErrOverlayMissing)
	assert.NotErrorIs(t, err, ErrStoreUnavailable)
	assert.Equal(t, []Message{Text{Text: failureText}}, h.onlyReply(t))
}

func TestImageFetchAndPublishFailures(t *testing.T) {
	t.Run("fetch", func(t *testing.T) {
		h := newHarness(t, kv.NewMemory())
		h.content.err = errors.New("404 content expired")

		err := h.router.Handle(context.Background(), ImageEvent{Meta: meta("U1"), MessageID: "m1"})
		assert.ErrorContains(t, err, "content expired")
		assert.Equal(t, []Message{Text{Text: failureText}}, h.onlyReply(t))
	})

	t.Run("publish", func(t *testing.T) {
		h := newHarness(t, kv.NewMemory())
		h.publisher.err = errors.New("disk full")

		err := h.router.Handle(context.Background(), ImageEvent{Meta: meta("U1"), MessageID: "m1"})
		assert.ErrorContains(t, err, "disk full")
		assert.Equal(t, []Message{Text{Text: failureText}}, h.onlyReply(t))
	})
}

func TestImageRateLimited(t *testing.T) {
	h := newHarness(t, kv.NewMemory(), func(d *Deps) { d.Limiter = denyAll{} })

	require.NoError(t, h.router.Handle(context.Background(), ImageEvent{Meta: meta("U1"), MessageID: "m1"}))

	assert.Equal(t, []Message{Text{Text: rateLimitedText}}, h.onlyReply(t))
	assert.Empty(t, h.compositor.overlayPath)
}

func TestStoreUnavailable(t *testing.T) {
	events := []Event{
		FollowEvent{Meta: meta("U1")},
		TextEvent{Meta: meta("U1"), Text: "SALE"},
		TextEvent{Meta: meta("U1"), Text: "送信完了 foo"},
		TextEvent{Meta: meta("U1"), Text: "hello"},
		ImageEvent{Meta: meta("U1"), MessageID: "m1"},
	}

	for _, ev := range events {
		t.Run(fmt.Sprintf("%T", ev), func(t *testing.T) {
			h := newHarness(t, brokenKV{kv.NewMemory()})

			err := h.router.Handle(context.Background(), ev)

			assert.ErrorIs(t, err, ErrStoreUnavailable)
			assert.Equal(t, []Message{Text{Text: failureText}}, h.onlyReply(t))
		})
	}
}

func TestRichMenuFailureDoesNotBlockReply(t *testing.T) {
	h := newHarness(t, kv.NewMemory())
	h.linker.err = errors.New("rich menu not found")

	require.NoError(t, h.router.Handle(context.Background(), TextEvent{Meta: meta("U1"), Text: "新品"}))

	assert.Equal(t, "04", h.storedMode(t, "U1"))
	assert.Len(t, h.onlyReply(t), 1)
}

func TestRichMenusDisabled(t *testing.T) {
	h := newHarness(t, kv.NewMemory(), func(d *Deps) { d.RichMenus = nil })

	require.NoError(t, h.router.Handle(context.Background(), FollowEvent{Meta: meta("U1")}))
	assert.Empty(t, h.linker.links)
}

func TestReplyFailureIsReturned(t *testing.T) {
	h := newHarness(t, kv.NewMemory())
	h.replier.err = errors.New("invalid reply token")

	err := h.router.Handle(context.Background(), TextEvent{Meta: meta("U1"), Text: FeatureRequestTrigger})
	assert.ErrorContains(t, err, "invalid reply token")
}

func TestMissingUser(t *testing.T) {
	h := newHarness(t, kv.NewMemory())

	err := h.router.Handle(context.Background(), ImageEvent{Meta: meta(""), MessageID: "m1"})

	assert.ErrorIs(t, err, ErrMissingUser)
	assert.Equal(t, []Message{Text{Text: missingUserText}}, h.onlyReply(t))
}

func TestImagePipelineWithRealCompositor(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeOverlay(t, filepath.Join(dir, "mercari_01.png"), 400, 300)
	catalog, err := label.Default(dir)
	require.NoError(t, err)

	h := newHarness(t, kv.NewMemory(), func(d *Deps) {
		d.Catalog = catalog
		d.Compositor = compose.New()
	})
	h.content.data = encodedPhoto(t, 1200, 1500)

	require.NoError(t, h.router.Handle(ctx, ImageEvent{Meta: meta("U1"), MessageID: "m1"}))

	card := h.onlyReply(t)[0].(Card)
	assert.Equal(t, composedText, card.Title)
	assert.Equal(t, 1, h.publisher.n)
}

func writeOverlay(t *testing.T, path string, w, h int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, image.NewNRGBA(image.Rect(0, 0, w, h))))
}

func encodedPhoto(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}
