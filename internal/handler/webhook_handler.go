package handler

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
	"golang.org/x/sync/errgroup"

	"labelbot/internal/app/bot"
	"labelbot/internal/app/line"
	"labelbot/internal/pkg/errs"
	"labelbot/internal/pkg/logx"
	"labelbot/internal/pkg/req"
	"labelbot/internal/pkg/resp"
)

const (
	// EventTimeout bounds the work done for one event, reply included.
	EventTimeout = 30 * time.Second

	// maxConcurrentEvents bounds parallel handling within one delivery.
	maxConcurrentEvents = 4
)

// HandleWebhook verifies and parses a platform delivery and hands each event to
// the bot. Events of one user are handled in delivery order; different users are
// handled concurrently. The response is 503 when any event failed on the store,
// so the platform may redeliver.
func HandleWebhook(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req.LimitBody(w, r, req.MaxWebhookBodySize)
		cb, err := webhook.ParseRequest(deps.Config.ChannelSecret, r)
		if err != nil {
			if errors.Is(err, webhook.ErrInvalidSignature) {
				resp.RespondError(w, r, errs.NewError(errs.ErrInvalidSignature, err))
				return
			}
			resp.RespondError(w, r, req.ClassifyBodyError(err))
			return
		}

		// Replies must go out even if the platform drops the connection.
		ctx := context.WithoutCancel(r.Context())

		var (
			mu       sync.Mutex
			failures []error
			g        errgroup.Group
		)
		g.SetLimit(maxConcurrentEvents)

		for _, events := range groupByUser(r.Context(), cb.Events) {
			g.Go(func() error {
				for _, ev := range events {
					evCtx, cancel := context.WithTimeout(ctx, EventTimeout)
					err := deps.Bot.Handle(evCtx, ev)
					cancel()

					if err != nil {
						mu.Lock()
						failures = append(failures, err)
						mu.Unlock()
					}
				}
				return nil
			})
		}
		_ = g.Wait()

		if err := errors.Join(failures...); errors.Is(err, bot.ErrStoreUnavailable) {
			resp.RespondError(w, r, errs.NewError(errs.ErrStoreUnavailable, err))
			return
		}

		resp.RespondSuccess(w, r, nil)
	}
}

// groupByUser converts raw events and splits them into per-user sequences that
// keep delivery order. Events without a user id each form their own sequence.
func groupByUser(ctx context.Context, raw []webhook.EventInterface) [][]bot.Event {
	var (
		groups [][]bot.Event
		byUser = make(map[string]int)
	)
	for _, r := range raw {
		ev, ok := line.ToEvent(r)
		if !ok {
			logx.Ctx(ctx).Debug().Str("type", r.GetType()).Msg("Ignoring unsupported event")
			continue
		}

		userID := ev.EventMeta().UserID
		if i, seen := byUser[userID]; seen && userID != "" {
			groups[i] = append(groups[i], ev)
			continue
		}
		if userID != "" {
			byUser[userID] = len(groups)
		}
		groups = append(groups, []bot.Event{ev})
	}
	return groups
}
