package handler

import (
	"net/http"

	"labelbot/internal/pkg/errs"
	"labelbot/internal/pkg/resp"
)

// InquiryList is the body of GET /api/inquiries.
type InquiryList struct {
	Count     int      `json:"count"`
	Inquiries []string `json:"inquiries"`
}

// HandleListInquiries returns every feature-request submission, oldest first.
func HandleListInquiries(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := deps.Inquiries.List(r.Context())
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrStoreUnavailable, err))
			return
		}
		if items == nil {
			items = []string{}
		}

		resp.RespondSuccess(w, r, InquiryList{Count: len(items), Inquiries: items})
	}
}
