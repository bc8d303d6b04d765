// Package metadata queries the upstream title-metadata service used to
// enrich newly created titles with type, year, and runtime.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
)

// ErrNotFound is returned when upstream has no record for the title.
var ErrNotFound = errors.New("metadata: not found")

// ErrUnavailable is returned while the circuit breaker is open.
var ErrUnavailable = errors.New("metadata: upstream unavailable")

// Result contains the fields available to enrich a title record.
type Result struct {
	TitleType      *string
	StartYear      *int
	RuntimeMinutes *int
}

// Client defines the contract for querying the upstream metadata API.
type Client interface {
	Fetch(ctx context.Context, primaryTitle string) (*Result, error)
}

// HTTPClient implements Client over HTTP with a circuit breaker in front,
// so a misbehaving upstream cannot stall every title creation.
type HTTPClient struct {
	baseURL *url.URL
	apiKey  string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*Result]
	logger  *log.Logger
}

// NewHTTPClient constructs a new HTTP-backed metadata client.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, logger *log.Logger) (*HTTPClient, error) {
	if logger == nil {
		logger = log.Default()
	}
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse metadata url: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker[*Result](gobreaker.Settings{
		Name:    "metadata",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// A miss is a valid upstream answer, not a fault.
			return err == nil || errors.Is(err, ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Printf("metadata: breaker %s -> %s", from, to)
		},
	})

	return &HTTPClient{
		baseURL: parsed,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		breaker: breaker,
		logger:  logger,
	}, nil
}

// Fetch retrieves title metadata by primary title.
func (c *HTTPClient) Fetch(ctx context.Context, primaryTitle string) (*Result, error) {
	result, err := c.breaker.Execute(func() (*Result, error) {
		return c.fetch(ctx, primaryTitle)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, err
	}
	return result, nil
}

func (c *HTTPClient) fetch(ctx context.Context, primaryTitle string) (*Result, error) {
	rel := &url.URL{Path: "/metadata"}
	q := rel.Query()
	q.Set("title", primaryTitle)
	rel.RawQuery = q.Encode()
	endpoint := c.baseURL.ResolveReference(rel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var payload apiResponse
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return nil, fmt.Errorf("decode metadata response: %w", err)
		}
		return &Result{
			TitleType:      normalizeType(payload.TitleType),
			StartYear:      payload.StartYear,
			RuntimeMinutes: payload.RuntimeMinutes,
		}, nil
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		c.logger.Printf("metadata: unexpected status %d for title %q", resp.StatusCode, primaryTitle)
		return nil, fmt.Errorf("metadata: upstream returned %d", resp.StatusCode)
	}
}

type apiResponse struct {
	Title          string  `json:"title"`
	TitleType      *string `json:"titleType"`
	StartYear      *int    `json:"startYear"`
	RuntimeMinutes *int    `json:"runtimeMinutes"`
}

func normalizeType(titleType *string) *string {
	if titleType == nil {
		return nil
	}
	val := strings.ToLower(strings.TrimSpace(*titleType))
	if val == "" {
		return nil
	}
	return &val
}
