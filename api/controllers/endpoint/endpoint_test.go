package endpoint

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/all-if-r/5SCENT-WEB-sub001/api/middleware"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/logger"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/pagination"
)

func TestHandleUnwiredAnswers500(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	called := false
	h := Handle(logg, "orders", false, func(*http.Request) (int, any, error) {
		called = true
		return OK(nil)
	})
	resp := httptest.NewRecorder()
	h(resp, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusInternalServerError, resp.Code)
	require.False(t, called)
}

func TestCallerID(t *testing.T) {
	_, err := CallerID(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Error(t, err)

	id := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), id.String()))
	got, err := CallerID(req)
	require.NoError(t, err)
	require.Equal(t, id, got)
}

func TestPageParams(t *testing.T) {
	page, err := PageParams(httptest.NewRequest(http.MethodGet, "/?cursor=%20abc%20", nil))
	require.NoError(t, err)
	require.Equal(t, pagination.DefaultLimit, page.Limit)
	require.Equal(t, "abc", page.Cursor)

	_, err = PageParams(httptest.NewRequest(http.MethodGet, "/?limit=0", nil))
	require.Error(t, err)
}
