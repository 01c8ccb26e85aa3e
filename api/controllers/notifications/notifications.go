package notifications

import (
	"net/http"

	"github.com/all-if-r/5SCENT-WEB-sub001/api/controllers/endpoint"
	"github.com/all-if-r/5SCENT-WEB-sub001/api/validators"
	internalnotifications "github.com/all-if-r/5SCENT-WEB-sub001/internal/notifications"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/logger"
)

// List pages the caller's inbox, newest first. ?unreadOnly=true
// hides read entries.
func List(svc internalnotifications.Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint.Handle(logg, "notifications", svc != nil, func(r *http.Request) (int, any, error) {
		user, err := endpoint.CallerID(r)
		if err != nil {
			return endpoint.Fail(err)
		}
		page, err := endpoint.PageParams(r)
		if err != nil {
			return endpoint.Fail(err)
		}
		unreadOnly, err := validators.ParseQueryBool(r, "unreadOnly")
		if err != nil {
			return endpoint.Fail(err)
		}
		result, err := svc.List(r.Context(), internalnotifications.ListParams{
			UserID:     user,
			Limit:      page.Limit,
			Cursor:     page.Cursor,
			UnreadOnly: unreadOnly,
		})
		if err != nil {
			return endpoint.Fail(err)
		}
		return endpoint.OK(result)
	})
}

func MarkRead(svc internalnotifications.Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint.Handle(logg, "notifications", svc != nil, func(r *http.Request) (int, any, error) {
		user, id, err := endpoint.CallerAnd(r, "notificationId")
		if err != nil {
			return endpoint.Fail(err)
		}
		if err := svc.MarkRead(r.Context(), user, id); err != nil {
			return endpoint.Fail(err)
		}
		return endpoint.OK(map[string]bool{"read": true})
	})
}

// MarkAllRead reports how many entries changed.
func MarkAllRead(svc internalnotifications.Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint.Handle(logg, "notifications", svc != nil, func(r *http.Request) (int, any, error) {
		user, err := endpoint.CallerID(r)
		if err != nil {
			return endpoint.Fail(err)
		}
		updated, err := svc.MarkAllRead(r.Context(), user)
		if err != nil {
			return endpoint.Fail(err)
		}
		return endpoint.OK(map[string]int64{"updated": updated})
	})
}
