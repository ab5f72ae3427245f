package handler

import (
	"context"

	"labelbot/internal/app/bot"
	"labelbot/internal/app/inquiry"
	"labelbot/internal/configs"
	"labelbot/internal/pkg/limiter"
)

// EventHandler processes one verified platform event.
type EventHandler interface {
	Handle(ctx context.Context, ev bot.Event) error
}

// Pinger reports whether a backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// AppDeps carries everything the HTTP layer needs. APILimiter is optional.
type AppDeps struct {
	Config     *configs.AppConfig
	Bot        EventHandler
	Inquiries  *inquiry.Log
	Store      Pinger
	APILimiter *limiter.KeyedLimiter
}
