package httpx

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newOrdersServer() *httptest.Server {
	router := NewRouter()
	oh := &OrdersHandler{Log: zap.NewNop()}
	oh.Register(router)
	return httptest.NewServer(router)
}

// A body without "status" must be rejected, not decoded as Pending (0):
// a tracking-only update would otherwise silently reset the order.
func TestUpdateStatus_MissingStatusFieldRejected(t *testing.T) {
	srv := newOrdersServer()
	defer srv.Close()

	body := bytes.NewBufferString(`{"tracking_number":"TRK1A2B3C4D"}`)
	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/orders/some-id/status", body)
	req.Header.Set("X-User-Id", "admin-1")
	req.Header.Set("X-User-Admin", "true")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpdateStatus_InvalidJSONRejected(t *testing.T) {
	srv := newOrdersServer()
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/orders/some-id/status",
		bytes.NewBufferString(`{status: 4}`))
	req.Header.Set("X-User-Id", "u1")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
