// Package adapters holds HTTP clients for the collaborator services that own
// transactions and goals. Both speak JSON, are scoped by the X-Owner-ID header
// and are retried with exponential backoff on transport errors and 5xx.
package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"orcamento/internal/core"
)

// OwnerHeader carries the owner scope on every request, inbound and outbound.
const OwnerHeader = "X-Owner-ID"

const maxBodyBytes = 4 << 20

// Options configure a remote client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	RetryWait  time.Duration
	MaxWait    time.Duration
	Logger     *slog.Logger
	HTTPClient *http.Client
}

// RemoteError is a non-success answer from a collaborator that has no domain meaning.
type RemoteError struct {
	Service    string
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s responded %d: %s", e.Service, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s responded %d", e.Service, e.StatusCode)
}

type remote struct {
	service string
	baseURL *url.URL
	client  *retryablehttp.Client
}

func newRemote(service string, opts Options) (*remote, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, fmt.Errorf("%s: base URL is required", service)
	}
	u, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%s: invalid base URL %q", service, opts.BaseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = httpClient
	rc.RetryMax = opts.MaxRetries
	if opts.RetryWait > 0 {
		rc.RetryWaitMin = opts.RetryWait
	}
	if opts.MaxWait > 0 {
		rc.RetryWaitMax = opts.MaxWait
	}
	rc.Logger = nil
	if opts.Logger != nil {
		rc.Logger = opts.Logger.With("component", "remote", "service", service)
	}
	// Return the last response after the final retry so its status can be mapped.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &remote{service: service, baseURL: u, client: rc}, nil
}

func (r *remote) endpoint(path string, query url.Values) string {
	u := *r.baseURL
	u.Path = u.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// getJSON performs GET path and decodes the body into out. 404 and 403 become
// core.NotFoundError and core.AuthorizationError for the given resource.
func (r *remote) getJSON(ctx context.Context, owner, path string, query url.Values, resource, id string, out any) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, r.endpoint(path, query), nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", r.service, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(OwnerHeader, owner)

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: GET %s: %w", r.service, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%s: read body: %w", r.service, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &core.NotFoundError{Resource: resource, ID: id}
	case resp.StatusCode == http.StatusForbidden:
		return &core.AuthorizationError{Resource: resource, ID: id}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &RemoteError{Service: r.service, StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode %s: %w", r.service, path, err)
	}
	return nil
}

func errorMessage(body []byte) string {
	var env struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
		Detail  string          `json:"detail"`
	}
	if json.Unmarshal(body, &env) != nil {
		return ""
	}
	if env.Message != "" {
		return env.Message
	}
	if env.Detail != "" {
		return env.Detail
	}
	var s string
	if json.Unmarshal(env.Error, &s) == nil {
		return s
	}
	var nested struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(env.Error, &nested) == nil {
		return nested.Message
	}
	return ""
}

// IsRemote reports whether err came from a collaborator answering with an unexpected status.
func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}
