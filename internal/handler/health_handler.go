package handler

import (
	"net/http"

	"labelbot/internal/pkg/errs"
	"labelbot/internal/pkg/resp"
)

// HandleHealth reports liveness and whether the key-value store answers.
func HandleHealth(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Store != nil {
			if err := deps.Store.Ping(r.Context()); err != nil {
				resp.RespondError(w, r, errs.NewError(errs.ErrStoreUnavailable, err))
				return
			}
		}

		resp.RespondSuccess(w, r, map[string]string{
			"status":  "ok",
			"service": "labelbot",
		})
	}
}
