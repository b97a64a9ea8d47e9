package sale

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPDoer abstracts http.Client for ease of testing.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPOracle fetches observations from a price-feed HTTP endpoint. The
// endpoint is expected to answer GET <endpoint>?feed=<id> with a JSON body
// {"price": <uint>, "expo": <uint>, "timestamp": <unix seconds>}.
type HTTPOracle struct {
	client   HTTPDoer
	endpoint string
}

// NewHTTPOracle constructs an HTTP oracle. When the client is nil
// http.DefaultClient is used.
func NewHTTPOracle(client HTTPDoer, endpoint string) *HTTPOracle {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPOracle{client: client, endpoint: strings.TrimSpace(endpoint)}
}

// Read implements the PriceOracle interface.
func (o *HTTPOracle) Read(feedID string) (PriceData, error) {
	if o == nil || o.endpoint == "" {
		return PriceData{}, fmt.Errorf("http oracle not configured")
	}
	req, err := http.NewRequest(http.MethodGet, o.endpoint, nil)
	if err != nil {
		return PriceData{}, err
	}
	values := url.Values{}
	values.Set("feed", strings.TrimSpace(feedID))
	req.URL.RawQuery = values.Encode()
	resp, err := o.client.Do(req)
	if err != nil {
		return PriceData{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return PriceData{}, fmt.Errorf("http oracle: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var payload struct {
		Price     uint64 `json:"price"`
		Expo      uint32 `json:"expo"`
		Timestamp int64  `json:"timestamp"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return PriceData{}, fmt.Errorf("http oracle: decode: %w", err)
	}
	if payload.Price == 0 {
		return PriceData{}, fmt.Errorf("http oracle: empty price")
	}
	return PriceData{Price: payload.Price, Expo: payload.Expo, ObservedAt: time.Unix(payload.Timestamp, 0)}, nil
}
