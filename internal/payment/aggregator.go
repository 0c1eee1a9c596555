package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrAggregatorUnavailable marks a failed call to the external bank
// aggregator. Callers degrade it to "no match found"; it never escalates.
var ErrAggregatorUnavailable = errors.New("bank aggregator unavailable")

// AggregatorClient fetches recent transaction history from the bank
// aggregator. Endpoint and credential are injected configuration, never
// embedded constants.
type AggregatorClient struct {
	Endpoint string
	Token    string
	Limit    int
	HTTP     *http.Client
}

func NewAggregatorClient(endpoint, token string, timeout time.Duration) *AggregatorClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AggregatorClient{
		Endpoint: endpoint,
		Token:    token,
		Limit:    20,
		HTTP:     &http.Client{Timeout: timeout},
	}
}

type historyRequest struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

type historyResponse struct {
	Data []Transaction `json:"data"`
}

// Recent fetches the latest transactions, newest page only. The response is
// either {"data":[...]} or a bare array depending on the provider.
func (c *AggregatorClient) Recent(ctx context.Context) ([]Transaction, error) {
	body, _ := json.Marshal(historyRequest{Limit: c.Limit, Offset: 0})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAggregatorUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAggregatorUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrAggregatorUnavailable, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read: %v", ErrAggregatorUnavailable, err)
	}

	var wrapped historyResponse
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Data != nil {
		return wrapped.Data, nil
	}

	// retry as bare array
	var flat []Transaction
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrAggregatorUnavailable, err)
	}
	return flat, nil
}
