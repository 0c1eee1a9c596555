package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregatorRecent_WrappedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req historyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 20, req.Limit)

		_ = json.NewEncoder(w).Encode(historyResponse{Data: []Transaction{
			{TID: "FT1", Description: "THANHTOAN 65A2BC", Amount: 200000},
		}})
	}))
	defer srv.Close()

	c := NewAggregatorClient(srv.URL, "secret", 2*time.Second)
	txs, err := c.Recent(context.Background())
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "FT1", txs[0].TID)
	assert.Equal(t, 200000, txs[0].Amount)
}

func TestAggregatorRecent_BareArrayResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]Transaction{{TID: "FT2", Amount: 1}})
	}))
	defer srv.Close()

	c := NewAggregatorClient(srv.URL, "", 2*time.Second)
	txs, err := c.Recent(context.Background())
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "FT2", txs[0].TID)
}

func TestAggregatorRecent_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewAggregatorClient(srv.URL, "bad", 2*time.Second)
	_, err := c.Recent(context.Background())
	require.ErrorIs(t, err, ErrAggregatorUnavailable)
}

func TestAggregatorRecent_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewAggregatorClient(srv.URL, "", 50*time.Millisecond)
	start := time.Now()
	_, err := c.Recent(context.Background())
	require.ErrorIs(t, err, ErrAggregatorUnavailable)
	assert.Less(t, time.Since(start), 250*time.Millisecond, "call must respect the bounded timeout")
}
