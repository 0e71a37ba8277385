package fleetapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"

	"fleet-checkpoint/config"
	"fleet-checkpoint/internal/model"
)

// maxRosterPages bounds pagination in case the API keeps returning a next link.
const maxRosterPages = 500

// TurnResponse is the result of a clock-in or clock-out call.
type TurnResponse struct {
	OK     bool
	Status int
	Body   json.RawMessage
}

// Client talks to the fleet REST API.
type Client struct {
	baseURL       string
	allowInsecure bool
	client        *http.Client
	session       *Session
}

// NewClient builds a client from the API configuration. Plain http base URLs are
// upgraded to https unless AllowInsecure is set.
func NewClient(cfg config.APIConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("fleet api base url is required")
	}

	var transport http.RoundTripper = &http.Transport{Proxy: http.ProxyFromEnvironment}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			log.Printf("Warning: Invalid proxy URL %q: %v. Fleet API client will not use a proxy.", cfg.HTTPProxy, err)
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	c := &Client{
		allowInsecure: cfg.AllowInsecure,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
	}
	c.baseURL = strings.TrimRight(c.secure(cfg.BaseURL), "/")
	if cfg.Token != "" {
		c.session = NewSession(cfg.Token)
	}
	return c, nil
}

// WithSession returns a copy of the client bound to s.
func (c *Client) WithSession(s *Session) *Client {
	cp := *c
	cp.session = s
	return &cp
}

// Session returns the bound session, or nil.
func (c *Client) Session() *Session {
	return c.session
}

func (c *Client) secure(raw string) string {
	if c.allowInsecure || !strings.HasPrefix(raw, "http://") {
		return raw
	}
	upgraded := "https://" + strings.TrimPrefix(raw, "http://")
	log.Printf("Upgrading fleet API URL to https: %s", upgraded)
	return upgraded
}

// Login exchanges credentials for a token and returns a new session. The receiver is
// not modified; bind the session with WithSession.
func (c *Client) Login(ctx context.Context, username, password string) (*Session, error) {
	payload, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal login payload: %w", err)
	}

	body, status, err := c.do(ctx, http.MethodPost, c.baseURL+"/get-token/", payload, false)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, &APIError{Status: status, Body: body}
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.Token == "" {
		return nil, fmt.Errorf("login response: %w", ErrMalformedResponse)
	}
	return NewSession(resp.Token), nil
}

// FetchRoster returns every driver. The endpoint may answer with a bare array or a
// paginated {results, next} object; pages are followed until next is null.
func (c *Client) FetchRoster(ctx context.Context) ([]model.Driver, error) {
	var drivers []model.Driver
	nextURL := c.baseURL + "/conductores/"

	for page := 1; nextURL != ""; page++ {
		if page > maxRosterPages {
			return nil, fmt.Errorf("roster pagination exceeded %d pages", maxRosterPages)
		}

		body, status, err := c.do(ctx, http.MethodGet, nextURL, nil, true)
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK {
			return nil, &APIError{Status: status, Body: body}
		}

		items, next, err := decodeRosterPage(body)
		if err != nil {
			return nil, fmt.Errorf("failed to decode roster page %d: %w", page, err)
		}
		for _, item := range items {
			drivers = append(drivers, item.toModel())
		}
		if next != "" {
			next = c.secure(next)
		}
		nextURL = next
	}
	return drivers, nil
}

func decodeRosterPage(body []byte) ([]driverDTO, string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, "", ErrMalformedResponse
	}

	if trimmed[0] == '[' {
		var items []driverDTO
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		return items, "", nil
	}

	var paged rosterPage
	if err := json.Unmarshal(trimmed, &paged); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if paged.Results == nil {
		return nil, "", ErrMalformedResponse
	}
	next := ""
	if paged.Next != nil {
		next = *paged.Next
	}
	return paged.Results, next, nil
}

// ClockIn starts the driver's shift.
func (c *Client) ClockIn(ctx context.Context, driverID string) (*TurnResponse, error) {
	return c.turn(ctx, driverID, "iniciar-turno")
}

// ClockOut ends the driver's shift.
func (c *Client) ClockOut(ctx context.Context, driverID string) (*TurnResponse, error) {
	return c.turn(ctx, driverID, "finalizar-turno")
}

func (c *Client) turn(ctx context.Context, driverID, action string) (*TurnResponse, error) {
	endpoint := fmt.Sprintf("%s/conductores/%s/%s/", c.baseURL, url.PathEscape(driverID), action)

	body, status, err := c.do(ctx, http.MethodPost, endpoint, []byte("{}"), true)
	if err != nil {
		return nil, err
	}

	resp := &TurnResponse{Status: status, Body: body}
	if status < 200 || status >= 300 {
		return resp, &APIError{Status: status, Body: body}
	}
	if !json.Valid(bytes.TrimSpace(body)) {
		return resp, fmt.Errorf("%s for driver %s: %w", action, driverID, ErrMalformedResponse)
	}
	resp.OK = true
	return resp, nil
}

// Ping checks that the API answers at all. Any HTTP response counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, _, err := c.do(ctx, http.MethodGet, c.baseURL+"/", nil, false)
	return err
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte, authed bool) ([]byte, int, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed && c.session != nil {
		token, err := c.session.Token()
		if err != nil {
			return nil, 0, err
		}
		if token != "" {
			req.Header.Set("Authorization", "Token "+token)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, resp.StatusCode, nil
}
