package location

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultIPEndpoint is the public IP geolocation service used by default.
const DefaultIPEndpoint = "https://ipapi.co/json"

// IPGeolocationProvider resolves a coarse position from the caller's public IP.
type IPGeolocationProvider struct {
	endpoint string
	client   *http.Client
}

type ipLookupResponse struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Error     bool     `json:"error"`
	Reason    string   `json:"reason"`
}

// NewIPGeolocationProvider creates a provider for endpoint. A nil client gets
// a plain client with a 10s timeout.
func NewIPGeolocationProvider(endpoint string, client *http.Client) *IPGeolocationProvider {
	if endpoint == "" {
		endpoint = DefaultIPEndpoint
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &IPGeolocationProvider{
		endpoint: endpoint,
		client:   client,
	}
}

func (p *IPGeolocationProvider) Name() string {
	return "ip"
}

// Lookup issues a single GET to the endpoint. Every failure wraps ErrFallbackUnavailable.
func (p *IPGeolocationProvider) Lookup(ctx context.Context) (Coordinate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint, nil)
	if err != nil {
		return Coordinate{}, fmt.Errorf("%w: create request: %v", ErrFallbackUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "geo-locator/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return Coordinate{}, fmt.Errorf("%w: %v", ErrFallbackUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Coordinate{}, fmt.Errorf("%w: status %d: %s", ErrFallbackUnavailable, resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var decoded ipLookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Coordinate{}, fmt.Errorf("%w: decode response: %v", ErrFallbackUnavailable, err)
	}
	if decoded.Error {
		return Coordinate{}, fmt.Errorf("%w: %s", ErrFallbackUnavailable, decoded.Reason)
	}
	if decoded.Latitude == nil || decoded.Longitude == nil {
		return Coordinate{}, fmt.Errorf("%w: response missing latitude/longitude", ErrFallbackUnavailable)
	}

	return Coordinate{Latitude: *decoded.Latitude, Longitude: *decoded.Longitude}, nil
}
