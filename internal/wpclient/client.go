// Package wpclient is the Request Manager: it renders an operation and
// its bound parameters into an HTTP request against one WordPress
// site, injects that site's auth headers, gates the call through its
// rate limiter and circuit breaker, retries transient failures with
// backoff, and classifies the outcome into a *errors.WPError.
package wpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/docdyhr/mcp-wordpress/internal/breaker"
	"github.com/docdyhr/mcp-wordpress/internal/clock"
	"github.com/docdyhr/mcp-wordpress/internal/operations"
	"github.com/docdyhr/mcp-wordpress/internal/ratelimit"
	"github.com/docdyhr/mcp-wordpress/internal/wpauth"
	"github.com/docdyhr/mcp-wordpress/pkg/encoding"
	wperrors "github.com/docdyhr/mcp-wordpress/pkg/errors"
	"github.com/docdyhr/mcp-wordpress/pkg/observability"
	"github.com/docdyhr/mcp-wordpress/pkg/resilience"
)

// defaultUploadChunkSize bounds how much of an upload's file body is
// held in memory at once; buildMultipartRequest streams the rest
// straight through to the connection instead of buffering it.
const defaultUploadChunkSize = 64 * 1024

// Site binds one WordPress site's base URL and Auth Manager together
// for the Request Manager to call against.
type Site struct {
	ID      string
	BaseURL string
	Auth    *wpauth.Manager
}

// Client is the Request Manager, shared across all configured sites.
type Client struct {
	httpClient       *http.Client
	uploadClient     *http.Client // longer-timeout client for media.upload
	limiter          *ratelimit.Limiter
	breakers         *breaker.Registry
	backoff          *resilience.ExponentialBackoff
	timeouts         *resilience.TimeoutConfig
	clock            clock.Clock
	logger           *zap.Logger
	maxRetries       int
	uploadChunkSize  int
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithMaxRetries overrides the default retry attempt count.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithUploadClient gives media.upload calls their own *http.Client,
// typically configured with a longer total timeout than the client
// used for ordinary REST calls.
func WithUploadClient(hc *http.Client) Option {
	return func(c *Client) { c.uploadClient = hc }
}

// WithUploadChunkSize overrides the buffer size used to stream an
// uploaded file's bytes into the multipart request body.
func WithUploadChunkSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.uploadChunkSize = n
		}
	}
}

// New builds a Request Manager Client.
func New(httpClient *http.Client, limiter *ratelimit.Limiter, breakers *breaker.Registry, clk clock.Clock, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient:      httpClient,
		uploadClient:    httpClient,
		limiter:         limiter,
		breakers:        breakers,
		backoff:         resilience.WordPressBackoff(),
		timeouts:        resilience.DefaultTimeoutConfig(),
		clock:           clk,
		logger:          logger,
		maxRetries:      3,
		uploadChunkSize: defaultUploadChunkSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Result is the outcome of one Execute call, carrying the diagnostics
// the Router folds into its response metadata.
type Result struct {
	Body         []byte
	StatusCode   int
	Attempts     int // number of upstream round-trips made, including the first
	ETag         string
	LastModified string
	NotModified  bool // true if the upstream answered 304 against the sent Validators
}

// Validators carries the conditional-request headers a GET should send
// when revalidating a stale-but-not-yet-evicted cache entry.
type Validators struct {
	ETag         string
	LastModified string
}

// doResult is doOnce's outcome on a successful (non-error) attempt.
type doResult struct {
	body         []byte
	statusCode   int
	etag         string
	lastModified string
	notModified  bool
}

// Execute performs op against site with the bound params, returning
// the raw JSON response body. It is equivalent to ExecuteConditional
// with no validators.
func (c *Client) Execute(ctx context.Context, site *Site, op operations.Operation, params map[string]interface{}) (Result, error) {
	return c.ExecuteConditional(ctx, site, op, params, Validators{})
}

// ExecuteConditional performs op against site with the bound params,
// sending If-None-Match/If-Modified-Since from validators when set, and
// returning the raw JSON response body. Idempotent operations (GET,
// DELETE) are retried on any retriable WPError (upstream 5xx, upstream
// 429, transport error, timeout) up to maxRetries. Non-idempotent
// mutations are retried only when the transport failed before any
// response arrived, when the upstream names a Retry-After delay
// (429/503), or when a 401 forced a credential refresh — in every other
// case a mutation fails on its first attempt. A transport failure is not
// checked for whether the request had already been written, so a
// mutation the server did receive can be replayed. A server-provided Retry-After is
// honored in place of the computed backoff delay whenever it is larger.
// A 304 response against validators is a terminal success carrying no
// body: Result.NotModified is set and the caller refreshes its own
// cached copy's TTL instead of replacing its value.
func (c *Client) ExecuteConditional(ctx context.Context, site *Site, op operations.Operation, params map[string]interface{}, validators Validators) (Result, error) {
	path, query, body, err := renderPath(op, params)
	if err != nil {
		return Result{}, err
	}

	var lastErr error
	var retryAfter time.Duration
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff.NextDelay(attempt - 1)
			if retryAfter > delay {
				delay = retryAfter
			}
			if err := c.clock.Sleep(ctx, delay); err != nil {
				return Result{}, wperrors.Wrap(wperrors.KindCancelled, "retry wait cancelled", err)
			}
		}

		if err := c.limiter.Acquire(ctx, site.ID); err != nil {
			return Result{}, err
		}
		observability.RecordRateLimitWait(site.ID)

		attemptCtx, cancel := c.timeouts.UpstreamCallContext(ctx)
		if op.Name == "media.upload" {
			attemptCtx, cancel = c.timeouts.UploadCallContext(ctx)
		}
		dr, callErr := c.doOnce(attemptCtx, site, op, path, query, body, validators)
		cancel()

		if callErr == nil {
			return Result{
				Body:         dr.body,
				StatusCode:   dr.statusCode,
				Attempts:     attempt + 1,
				ETag:         dr.etag,
				LastModified: dr.lastModified,
				NotModified:  dr.notModified,
			}, nil
		}
		lastErr = callErr
		retryAfter = 0

		var wpErr *wperrors.WPError
		if !wperrors.As(callErr, &wpErr) {
			return Result{}, callErr
		}
		retryAfter = wpErr.RetryAfter

		if !c.shouldRetry(op, wpErr) {
			return Result{}, callErr
		}
		if ctx.Err() != nil {
			return Result{}, wperrors.Wrap(wperrors.KindCancelled, "call cancelled during retry loop", ctx.Err())
		}
	}
	return Result{}, lastErr
}

// shouldRetry decides, per §4.3 step 4, whether a failed attempt earns
// another try. Idempotent operations retry on anything retriable. A
// mutation only retries when no response arrived (a connection error,
// which may have struck before or after the request was written), the
// upstream explicitly asked for a delayed retry, or the request was
// rejected before WordPress acted on it (401, which the Auth Manager
// has just refreshed out from under).
func (c *Client) shouldRetry(op operations.Operation, wpErr *wperrors.WPError) bool {
	if !wpErr.Retriable {
		return false
	}
	if wpErr.Kind == wperrors.KindAuthExpired {
		return true
	}
	if op.Idempotent {
		return true
	}
	if wpErr.Kind == wperrors.KindConnectionFailed {
		return true
	}
	return wpErr.RetryAfter > 0
}

func (c *Client) doOnce(ctx context.Context, site *Site, op operations.Operation, path string, query url.Values, body map[string]interface{}, validators Validators) (doResult, error) {
	br := c.breakers.For(site.ID)

	var result doResult
	err := br.Call(func() error {
		req, err := c.buildRequest(ctx, site, op, path, query, body)
		if err != nil {
			return err
		}

		headers, err := site.Auth.Headers(ctx)
		if err != nil {
			return err
		}
		for k, vs := range headers {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		if validators.ETag != "" {
			req.Header.Set("If-None-Match", validators.ETag)
		}
		if validators.LastModified != "" {
			req.Header.Set("If-Modified-Since", validators.LastModified)
		}

		hc := c.httpClient
		if op.Name == "media.upload" {
			hc = c.uploadClient
		}

		resp, doErr := hc.Do(req)
		if doErr != nil {
			if ctx.Err() != nil {
				return &wperrors.WPError{Kind: wperrors.KindTimeout, Message: "upstream call timed out", Cause: doErr, Retriable: true}
			}
			return &wperrors.WPError{Kind: wperrors.KindConnectionFailed, Message: "upstream connection failed before a response was received", Cause: doErr, Retriable: true}
		}
		defer resp.Body.Close()

		result.etag = resp.Header.Get("ETag")
		result.lastModified = resp.Header.Get("Last-Modified")

		if resp.StatusCode == http.StatusNotModified {
			io.Copy(io.Discard, resp.Body) //nolint:errcheck // best-effort drain to let the connection be reused
			result.notModified = true
			result.statusCode = resp.StatusCode
			return nil
		}

		data, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return &wperrors.WPError{Kind: wperrors.KindTransportError, Message: "reading upstream response", Cause: readErr, Retriable: true}
		}

		if resp.StatusCode == http.StatusUnauthorized {
			if refreshErr := site.Auth.Refresh(ctx); refreshErr != nil {
				return &wperrors.WPError{Kind: wperrors.KindAuthExpired, Message: "upstream rejected credentials and refresh failed", Cause: refreshErr}
			}
			return &wperrors.WPError{Kind: wperrors.KindAuthExpired, Message: "credentials refreshed, retry required", Retriable: true}
		}

		if resp.StatusCode >= 300 {
			excerpt := string(data)
			if len(excerpt) > 500 {
				excerpt = excerpt[:500]
			}
			wpErr := wperrors.FromUpstream(resp.StatusCode, excerpt)
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
				wpErr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), c.clock.Now())
			}
			return wpErr
		}

		result.body = data
		result.statusCode = resp.StatusCode
		return nil
	})

	if err == breaker.ErrOpen || err == breaker.ErrTooManyRequests {
		return doResult{}, wperrors.Wrap(wperrors.KindUpstreamUnavailable, "circuit breaker is open for site "+site.ID, err)
	}
	if err != nil {
		return doResult{}, err
	}
	return result, nil
}

// parseRetryAfter interprets a Retry-After header value (either an
// integer number of seconds or an HTTP-date) into a duration relative
// to now. An absent, malformed, or past value yields zero.
func parseRetryAfter(header string, now time.Time) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if when, err := http.ParseTime(header); err == nil {
		if d := when.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func (c *Client) buildRequest(ctx context.Context, site *Site, op operations.Operation, path string, query url.Values, body map[string]interface{}) (*http.Request, error) {
	fullURL := site.BaseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	if op.Name == "media.upload" {
		return c.buildMultipartRequest(ctx, fullURL, op, body)
	}

	var reader io.Reader
	if len(body) > 0 {
		buf := encoding.GetBuffer()
		defer encoding.PutBuffer(buf)
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return nil, wperrors.Wrap(wperrors.KindParamInvalid, "encoding request body", err)
		}
		reader = bytes.NewReader(append([]byte(nil), buf.Bytes()...))
	}

	req, err := http.NewRequestWithContext(ctx, string(op.Method), fullURL, reader)
	if err != nil {
		return nil, wperrors.Wrap(wperrors.KindTransportError, "building request", err)
	}
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// buildMultipartRequest streams the "file" body param (an io.Reader,
// or a []byte for small payloads) into the request body through an
// io.Pipe as it is multipart-encoded, so an upload's bytes are never
// held in memory beyond one uploadChunkSize buffer at a time.
func (c *Client) buildMultipartRequest(ctx context.Context, fullURL string, op operations.Operation, body map[string]interface{}) (*http.Request, error) {
	file := body["file"]
	switch file.(type) {
	case io.Reader, []byte:
	default:
		return nil, wperrors.New(wperrors.KindParamInvalid, "media.upload file param must be an io.Reader or []byte")
	}

	filename := "upload.bin"
	if title, ok := body["title"].(string); ok && title != "" {
		filename = title
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	contentType := mw.FormDataContentType()

	go func() {
		writeErr := c.writeMultipartBody(mw, file, filename, body)
		if writeErr != nil {
			pw.CloseWithError(writeErr)
			return
		}
		pw.Close()
	}()

	req, err := http.NewRequestWithContext(ctx, string(op.Method), fullURL, pr)
	if err != nil {
		return nil, wperrors.Wrap(wperrors.KindTransportError, "building multipart request", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// writeMultipartBody streams file into mw's "file" form field in
// uploadChunkSize-sized chunks, then writes every other body param as
// a plain form field and closes the writer. It runs on its own
// goroutine, paired with the io.Pipe reader fed to the HTTP request.
func (c *Client) writeMultipartBody(mw *multipart.Writer, file interface{}, filename string, body map[string]interface{}) error {
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return err
	}

	chunk := make([]byte, c.uploadChunkSize)
	switch f := file.(type) {
	case io.Reader:
		if _, err := io.CopyBuffer(part, f, chunk); err != nil {
			return err
		}
	case []byte:
		if _, err := io.CopyBuffer(part, bytes.NewReader(f), chunk); err != nil {
			return err
		}
	}

	for k, v := range body {
		if k == "file" {
			continue
		}
		if err := mw.WriteField(k, toString(v)); err != nil {
			return err
		}
	}

	return mw.Close()
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
