package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"illust_nest/internal/lib/logger/sl"
	"illust_nest/internal/middleware"
	"illust_nest/internal/session"
	"illust_nest/internal/transport/http/dto/response"

	"golang.org/x/time/rate"
)

const loginPath = "/api/auth/login"

// maxBinarySize caps binary downloads held in memory (images, not exports).
const maxBinarySize = 64 << 20

var (
	ErrRequestFailed    = errors.New("request failed")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrUnexpectedStatus = errors.New("unexpected status")
)

type Options struct {
	// Timeout bounds a JSON exchange, and only the wait for response headers
	// on streamed downloads and uploads.
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables limiting
	Burst     int
	Transport http.RoundTripper
}

// Client talks to the gallery backend. Every private request carries the
// session's bearer token; a 401 on anything but login clears the session.
type Client struct {
	log        *slog.Logger
	baseURL    *url.URL
	httpClient *http.Client
	timeout    time.Duration
	limiter    *rate.Limiter
	session    *session.Session
}

func New(log *slog.Logger, baseURL string, sess *session.Session, opts Options) (*Client, error) {
	const op = "http.New"

	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%s: parse base url: %w", op, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%s: base url must be absolute: %q", op, baseURL)
	}

	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return &Client{
		log:     log,
		baseURL: u,
		httpClient: &http.Client{
			Transport: middleware.PrometheusMetrics(opts.Transport),
		},
		timeout: opts.Timeout,
		limiter: limiter,
		session: sess,
	}, nil
}

func (c *Client) Session() *session.Session {
	return c.session
}

type request struct {
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
	public      bool
	// stream marks a request whose body may take longer than the timeout to send.
	stream bool
}

// send performs the request and returns the raw response. The caller owns the body.
func (c *Client) send(ctx context.Context, r request) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
		}
	}

	u := *c.baseURL
	u.Path = c.baseURL.Path + r.path
	if len(r.query) > 0 {
		u.RawQuery = r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), r.body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	req.Header.Set("Accept", "application/json")
	if !r.public {
		if token := c.session.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}

	if resp.StatusCode == http.StatusUnauthorized && r.path != loginPath {
		env, _ := readEnvelope(resp)
		c.log.Warn("backend rejected credentials, clearing session", slog.String("path", r.path))
		c.session.Clear(session.ReasonUnauthorized)
		if apiErr := env.Err(); apiErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnauthorized, apiErr)
		}
		return nil, ErrUnauthorized
	}

	return resp, nil
}

// do sends a request that answers with the JSON envelope and decodes data into out.
func (c *Client) do(ctx context.Context, r request, out any) error {
	if !r.stream {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.send(ctx, r)
	if err != nil {
		return err
	}

	env, err := readEnvelope(resp)
	if err != nil {
		c.log.Error("bad response", slog.String("path", r.path), slog.Int("status", resp.StatusCode), sl.Err(err))
		return err
	}

	if err := env.Err(); err != nil {
		return err
	}

	return env.Decode(out)
}

// doEnvelope is do without decoding, for callers that need the raw data.
func (c *Client) doEnvelope(ctx context.Context, r request) (response.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.send(ctx, r)
	if err != nil {
		return response.Response{}, err
	}

	env, err := readEnvelope(resp)
	if err != nil {
		return env, err
	}

	return env, env.Err()
}

func readEnvelope(resp *http.Response) (response.Response, error) {
	defer resp.Body.Close()

	var env response.Response
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return env, fmt.Errorf("%w: read body: %w", ErrRequestFailed, err)
	}

	if err := json.Unmarshal(data, &env); err != nil {
		if resp.StatusCode >= 300 {
			return env, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
		}
		return env, fmt.Errorf("%w: decode envelope: %w", ErrRequestFailed, err)
	}

	return env, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, request{method: http.MethodGet, path: path, query: query}, out)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, body, out any) error {
	r := request{method: method, path: path}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		r.body = bytes.NewReader(data)
		r.contentType = "application/json"
	}
	return c.do(ctx, r, out)
}

// sendMultipart streams a multipart body built by write through a pipe so
// large uploads are never buffered whole.
func (c *Client) sendMultipart(ctx context.Context, path string, write func(mw *multipart.Writer) error, out any) error {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := write(mw)
		if err == nil {
			err = mw.Close()
		}
		_ = pw.CloseWithError(err)
	}()

	err := c.do(ctx, request{
		method:      http.MethodPost,
		path:        path,
		body:        pr,
		contentType: mw.FormDataContentType(),
		stream:      true,
	}, out)
	_ = pr.Close()
	return err
}

// Binary is a non-JSON payload fetched from the backend.
type Binary struct {
	Data        []byte
	ContentType string
	Filename    string
}

func (c *Client) getBinary(ctx context.Context, path string, query url.Values, public bool) (*Binary, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	rc, contentType, filename, err := c.openBinary(ctx, path, query, public)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxBinarySize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrRequestFailed, err)
	}
	if len(data) > maxBinarySize {
		return nil, fmt.Errorf("%w: payload larger than %d bytes", ErrRequestFailed, maxBinarySize)
	}

	return &Binary{Data: data, ContentType: contentType, Filename: filename}, nil
}

// openBinary returns the body of a binary endpoint for streaming. Only the
// wait for headers is bounded by the client timeout; the body runs on ctx.
// Errors reported as JSON envelopes are decoded into application errors.
func (c *Client) openBinary(ctx context.Context, path string, query url.Values, public bool) (io.ReadCloser, string, string, error) {
	ctx, cancel := context.WithCancel(ctx)
	headers := time.AfterFunc(c.timeout, cancel)

	resp, err := c.send(ctx, request{method: http.MethodGet, path: path, query: query, public: public})
	if !headers.Stop() && err == nil {
		resp.Body.Close()
		err = fmt.Errorf("%w: %w", ErrRequestFailed, context.DeadlineExceeded)
	}
	if err != nil {
		cancel()
		return nil, "", "", err
	}

	contentType := resp.Header.Get("Content-Type")
	if resp.StatusCode >= 300 || strings.HasPrefix(contentType, "application/json") {
		defer cancel()

		env, err := readEnvelope(resp)
		if err != nil {
			return nil, "", "", err
		}
		if apiErr := env.Err(); apiErr != nil {
			return nil, "", "", apiErr
		}
		return nil, "", "", fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	body := &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return body, contentType, filenameFrom(resp.Header.Get("Content-Disposition")), nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

func filenameFrom(disposition string) string {
	if disposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	return params["filename"]
}
