package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/shiftdesk/internal/common"
	"github.com/dmitrijs2005/shiftdesk/internal/logging"
	"github.com/dmitrijs2005/shiftdesk/internal/metrics"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Terminator ends the local session after a failed credential refresh.
type Terminator interface {
	Teardown(ctx context.Context)
}

type Options struct {
	BaseURL           string
	Language          string
	Timeout           time.Duration
	RequestsPerSecond float64

	// HTTPClient overrides the default client. Jar is installed on it when
	// it has none.
	HTTPClient *http.Client
	Jar        http.CookieJar

	Pipeline   *Pipeline
	Classifier *Classifier
	Session    Terminator
	Logger     logging.Logger
}

// Client issues requests against the dashboard API. Every failure is
// returned as *APIError; a 401 is retried once behind a shared credential
// refresh.
type Client struct {
	baseURL    *url.URL
	language   string
	http       *http.Client
	limiter    *rate.Limiter
	pipeline   *Pipeline
	classifier *Classifier
	session    Terminator
	refresher  *refresher
	logger     logging.Logger
}

func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", opts.BaseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Jar != nil && httpClient.Jar == nil {
		withJar := *httpClient
		withJar.Jar = opts.Jar
		httpClient = &withJar
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	pipeline := opts.Pipeline
	if pipeline == nil {
		pipeline = NewPipeline(nil, true, logger)
	}
	classifier := opts.Classifier
	if classifier == nil {
		classifier = NewClassifier(nil, nil, opts.Language, nil, logger)
	}

	c := &Client{
		baseURL:    base,
		language:   opts.Language,
		http:       httpClient,
		pipeline:   pipeline,
		classifier: classifier,
		session:    opts.Session,
		logger:     logger,
	}
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	c.refresher = newRefresher(c.refreshCredentials, c.send, c.teardown, logger)
	return c, nil
}

// Send issues req and returns the decoded response or an *APIError.
func (c *Client) Send(ctx context.Context, req *Request) (*Response, error) {
	r := req.clone()
	r.retried = false
	r.refresh = false
	if err := r.encode(); err != nil {
		return nil, &APIError{
			Message: err.Error(),
			Code:    CodeInvalidRequest,
			Kind:    KindClientValidation,
			Err:     err,
		}
	}
	return c.send(ctx, r, nil)
}

func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Send(ctx, &Request{Method: http.MethodGet, Path: path, Query: query})
}

func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Send(ctx, &Request{Method: http.MethodPost, Path: path, Body: body})
}

func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.Send(ctx, &Request{Method: http.MethodPut, Path: path, Body: body})
}

func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Send(ctx, &Request{Method: http.MethodDelete, Path: path})
}

// Download fetches a binary resource into w.
func (c *Client) Download(ctx context.Context, path string, w io.Writer) (int64, error) {
	resp, err := c.Send(ctx, &Request{Method: http.MethodGet, Path: path, Binary: true})
	if err != nil {
		return 0, err
	}
	n, err := w.Write(resp.Body)
	return int64(n), err
}

// send runs one request cycle. dispatched, when set, is called once the
// request has been written to the connection.
func (c *Client) send(ctx context.Context, req *Request, dispatched func()) (*Response, error) {
	resp, err := c.roundTrip(ctx, req, dispatched)
	if err != nil {
		return nil, c.classifier.Classify(ctx, Failure{Err: err, SkipToast: req.SkipErrorToast})
	}

	if resp.StatusCode < http.StatusBadRequest {
		return c.decode(ctx, req, resp)
	}

	if resp.StatusCode == http.StatusUnauthorized && !req.refresh && !req.retried {
		return c.refresher.handle(ctx, req)
	}

	if req.Binary {
		return nil, c.recoverBlob(ctx, req, resp)
	}
	return nil, c.classifier.Classify(ctx, Failure{
		StatusCode: resp.StatusCode,
		Body:       resp.Body,
		SkipToast:  req.SkipErrorToast,
	})
}

func (c *Client) decode(ctx context.Context, req *Request, resp *Response) (*Response, error) {
	body, err := c.pipeline.Decode(ctx, resp.Body, req.Binary)
	if err != nil {
		return nil, &APIError{
			Message:    err.Error(),
			StatusCode: resp.StatusCode,
			Code:       CodeDecryptionFailed,
			Kind:       KindServerFault,
			Err:        err,
		}
	}
	resp.Body = body
	return resp, nil
}

// recoverBlob reads a failed binary response as JSON to recover the
// server's error message.
func (c *Client) recoverBlob(ctx context.Context, req *Request, resp *Response) error {
	if isJSON(resp.Body) {
		return c.classifier.Classify(ctx, Failure{
			StatusCode: resp.StatusCode,
			Body:       resp.Body,
			SkipToast:  req.SkipErrorToast,
		})
	}

	c.logger.Warn(ctx, "binary error response is not JSON", "status", resp.StatusCode, "path", req.Path)
	msg := strings.TrimSpace(string(resp.Body))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &APIError{
		Message:    msg,
		StatusCode: resp.StatusCode,
		Code:       CodeBlobDecodeFailure,
		Kind:       KindBlobDecode,
	}
}

func (c *Client) refreshCredentials(ctx context.Context) error {
	req := &Request{
		Method:         http.MethodPost,
		Path:           common.RefreshPath,
		SkipErrorToast: true,
		refresh:        true,
	}
	resp, err := c.roundTrip(ctx, req, nil)
	if err != nil {
		return c.classifier.RefreshFailure(0, nil, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return c.classifier.RefreshFailure(resp.StatusCode, resp.Body, fmt.Errorf("refresh returned %d", resp.StatusCode))
	}
	return nil
}

func (c *Client) teardown(ctx context.Context) {
	if c.session != nil {
		c.session.Teardown(ctx)
	}
}

func (c *Client) roundTrip(ctx context.Context, req *Request, dispatched func()) (*Response, error) {
	if dispatched != nil {
		dispatched = sync.OnceFunc(dispatched)
		defer dispatched()
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	hr, err := c.newHTTPRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	ctx = logging.WithRequestID(ctx, hr.Header.Get(common.RequestIDHeaderName))
	if dispatched != nil {
		trace := &httptrace.ClientTrace{
			WroteRequest: func(httptrace.WroteRequestInfo) { dispatched() },
		}
		hr = hr.WithContext(httptrace.WithClientTrace(hr.Context(), trace))
	}

	start := time.Now()
	resp, err := c.http.Do(hr)
	if dispatched != nil {
		dispatched()
	}
	metrics.HTTPDuration.WithLabelValues(hr.Method).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.HTTPRequests.WithLabelValues(hr.Method, metrics.StatusClass(0)).Inc()
		return nil, err
	}
	defer resp.Body.Close()
	metrics.HTTPRequests.WithLabelValues(hr.Method, metrics.StatusClass(resp.StatusCode)).Inc()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	c.logger.Debug(ctx, "request completed",
		"method", hr.Method,
		"path", req.Path,
		"status", resp.StatusCode,
	)
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

func (c *Client) newHTTPRequest(ctx context.Context, req *Request) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.payload != nil {
		body = bytes.NewReader(req.payload)
	}

	hr, err := http.NewRequestWithContext(ctx, method, c.resolve(req), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	c.decorate(hr, req)
	return hr, nil
}

func (c *Client) resolve(req *Request) string {
	var u url.URL
	if abs, err := url.Parse(req.Path); err == nil && abs.IsAbs() {
		u = *abs
	} else {
		u = *c.baseURL
		u.Path = strings.TrimRight(c.baseURL.Path, "/") + "/" + strings.TrimLeft(req.Path, "/")
	}
	if len(req.Query) > 0 {
		q := u.Query()
		for k, vs := range req.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// decorate applies the headers every request carries. Values set by the
// caller win.
func (c *Client) decorate(hr *http.Request, req *Request) {
	for k, vs := range req.Header {
		hr.Header[k] = append([]string(nil), vs...)
	}

	if c.language != "" && hr.Header.Get(common.LanguageHeaderName) == "" {
		hr.Header.Set(common.LanguageHeaderName, c.language)
	}
	if req.contentType != "" && hr.Header.Get(common.ContentTypeHeaderName) == "" {
		hr.Header.Set(common.ContentTypeHeaderName, req.contentType)
	}
	if hr.Header.Get("Accept") == "" {
		if req.Binary {
			hr.Header.Set("Accept", "*/*")
		} else {
			hr.Header.Set("Accept", common.JSONContentType)
		}
	}
	if hr.Header.Get(common.RequestIDHeaderName) == "" {
		hr.Header.Set(common.RequestIDHeaderName, uuid.NewString())
	}
}

func isJSON(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') && json.Valid(trimmed)
}

// IsKind reports whether err is an *APIError of kind k.
func IsKind(err error, k Kind) bool {
	if sentinel, ok := kindErrors[k]; ok {
		return errors.Is(err, sentinel)
	}
	return false
}
