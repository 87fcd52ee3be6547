package gateway

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"

	"github.com/five82/biblio/internal/failure"
	"github.com/five82/biblio/internal/session"
)

// Backend defines every operation the library backend exposes. It is
// implemented by *Client and can be replaced in tests.
type Backend interface {
	Login(ctx context.Context, req LoginRequest) (LoginResponse, error)
	ListBooks(ctx context.Context) ([]Book, error)
	CreateBook(ctx context.Context, b Book) error
	UpdateBook(ctx context.Context, b Book) error
	DeleteBook(ctx context.Context, id int) error
	ListCopies(ctx context.Context) ([]Copy, error)
	CreateCopy(ctx context.Context, c Copy) error
	DeleteCopy(ctx context.Context, id int) error
	ListMembers(ctx context.Context) ([]Member, error)
	CreateMember(ctx context.Context, m Member) error
	UpdateMember(ctx context.Context, m Member) error
	DeleteMember(ctx context.Context, id int) error
	ListLoans(ctx context.Context) ([]Loan, error)
	CreateLoan(ctx context.Context, req CreateLoanRequest) error
	ReturnLoan(ctx context.Context, id int) error
	Dashboard(ctx context.Context) (Dashboard, error)
}

// Ensure Client implements Backend at compile time.
var _ Backend = (*Client)(nil)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// Client talks to the library REST API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	session   *session.Store
	log       zerolog.Logger
}

const (
	defaultBaseURL   = "https://localhost:7263/api"
	defaultUserAgent = "biblio/0.1"
	requestTimeout   = 10 * time.Second
	maxErrorBody     = 64 << 10
	maxMessageLen    = 240
)

// Option configures a Client.
type Option func(*Client)

// WithSession attaches the session store used for bearer auth and tenant
// stamping.
func WithSession(s *session.Store) Option {
	return func(c *Client) { c.session = s }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithInsecureTLS disables certificate verification for self-signed
// development backends.
func WithInsecureTLS(insecure bool) Option {
	return func(c *Client) {
		if !insecure {
			return
		}
		base, ok := http.DefaultTransport.(*http.Transport)
		if !ok {
			return
		}
		tr := base.Clone()
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for localhost backends
		c.http.Transport = tr
	}
}

// NewClient builds a Client for the API rooted at baseURL (for example
// https://localhost:7263/api).
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL:   base,
		http:      &http.Client{Timeout: requestTimeout},
		userAgent: defaultUserAgent,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the API root the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Login exchanges tenant code and credentials for a token. It is the only
// call that does not require a session.
func (c *Client) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	const op = "login"
	if err := failure.Validate(op, loginInput(req)); err != nil {
		return LoginResponse{}, err
	}
	var resp LoginResponse
	if err := c.send(ctx, call{op: op, method: http.MethodPost, path: []string{"auth", "login"}, body: req, public: true}, &resp); err != nil {
		return LoginResponse{}, err
	}
	if strings.TrimSpace(resp.Token) == "" {
		return LoginResponse{}, failure.New(failure.Decode, op, "login response carried no token")
	}
	return resp, nil
}

type loginInput struct {
	TenantCode string `validate:"required"`
	Email      string `validate:"required"`
	Password   string `validate:"required"`
}

// ListBooks returns the tenant's catalog.
func (c *Client) ListBooks(ctx context.Context) ([]Book, error) {
	var books []Book
	if err := c.send(ctx, call{op: "list books", method: http.MethodGet, path: []string{"books"}}, &books); err != nil {
		return nil, err
	}
	return books, nil
}

// CreateBook posts a new book stamped with the session tenant.
func (c *Client) CreateBook(ctx context.Context, b Book) error {
	const op = "create book"
	tenant, err := c.tenant(op)
	if err != nil {
		return err
	}
	b.ID = 0
	b.TenantID = tenant
	return c.send(ctx, call{op: op, method: http.MethodPost, path: []string{"books"}, body: b}, nil)
}

// UpdateBook replaces an existing book.
func (c *Client) UpdateBook(ctx context.Context, b Book) error {
	const op = "update book"
	tenant, err := c.tenant(op)
	if err != nil {
		return err
	}
	b.TenantID = tenant
	return c.send(ctx, call{op: op, method: http.MethodPut, path: []string{"books", strconv.Itoa(b.ID)}, body: b}, nil)
}

// DeleteBook removes a book. The backend refuses books that still have
// copies or loans.
func (c *Client) DeleteBook(ctx context.Context, id int) error {
	return c.send(ctx, call{op: "delete book", method: http.MethodDelete, path: []string{"books", strconv.Itoa(id)}}, nil)
}

// ListCopies returns every copy of every book for the tenant.
func (c *Client) ListCopies(ctx context.Context) ([]Copy, error) {
	var copies []Copy
	if err := c.send(ctx, call{op: "list copies", method: http.MethodGet, path: []string{"copies"}}, &copies); err != nil {
		return nil, err
	}
	return copies, nil
}

// CreateCopy posts a new copy stamped with the session tenant.
func (c *Client) CreateCopy(ctx context.Context, cp Copy) error {
	const op = "create copy"
	tenant, err := c.tenant(op)
	if err != nil {
		return err
	}
	cp.ID = 0
	cp.TenantID = tenant
	cp.Book = nil
	return c.send(ctx, call{op: op, method: http.MethodPost, path: []string{"copies"}, body: cp}, nil)
}

// DeleteCopy removes a copy.
func (c *Client) DeleteCopy(ctx context.Context, id int) error {
	return c.send(ctx, call{op: "delete copy", method: http.MethodDelete, path: []string{"copies", strconv.Itoa(id)}}, nil)
}

// ListMembers returns the tenant's members.
func (c *Client) ListMembers(ctx context.Context) ([]Member, error) {
	var members []Member
	if err := c.send(ctx, call{op: "list members", method: http.MethodGet, path: []string{"members"}}, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// CreateMember posts a new member stamped with the session tenant.
func (c *Client) CreateMember(ctx context.Context, m Member) error {
	const op = "create member"
	tenant, err := c.tenant(op)
	if err != nil {
		return err
	}
	m.ID = 0
	m.TenantID = tenant
	return c.send(ctx, call{op: op, method: http.MethodPost, path: []string{"members"}, body: m}, nil)
}

// UpdateMember replaces an existing member.
func (c *Client) UpdateMember(ctx context.Context, m Member) error {
	const op = "update member"
	tenant, err := c.tenant(op)
	if err != nil {
		return err
	}
	m.TenantID = tenant
	return c.send(ctx, call{op: op, method: http.MethodPut, path: []string{"members", strconv.Itoa(m.ID)}, body: m}, nil)
}

// DeleteMember removes a member. Members with loan history are refused.
func (c *Client) DeleteMember(ctx context.Context, id int) error {
	return c.send(ctx, call{op: "delete member", method: http.MethodDelete, path: []string{"members", strconv.Itoa(id)}}, nil)
}

// ListLoans returns the full loan history with copy, book and member joined.
func (c *Client) ListLoans(ctx context.Context) ([]Loan, error) {
	var loans []Loan
	if err := c.send(ctx, call{op: "list loans", method: http.MethodGet, path: []string{"loans"}}, &loans); err != nil {
		return nil, err
	}
	return loans, nil
}

// CreateLoan asks the backend to claim the copy for the member. The backend
// re-validates availability and may reject the request.
func (c *Client) CreateLoan(ctx context.Context, req CreateLoanRequest) error {
	const op = "create loan"
	tenant, err := c.tenant(op)
	if err != nil {
		return err
	}
	if req.MemberID <= 0 || req.CopyID <= 0 {
		return &failure.Error{Kind: failure.Validation, Op: op, Message: "member and copy are required"}
	}
	req.TenantID = tenant
	return c.send(ctx, call{op: op, method: http.MethodPost, path: []string{"loans"}, body: req}, nil)
}

// ReturnLoan marks the loan returned. The body is the bare loan id.
func (c *Client) ReturnLoan(ctx context.Context, id int) error {
	const op = "return loan"
	if _, err := c.tenant(op); err != nil {
		return err
	}
	return c.send(ctx, call{op: op, method: http.MethodPost, path: []string{"loans", "return"}, body: id}, nil)
}

// Dashboard returns the summary counters and recent activity.
func (c *Client) Dashboard(ctx context.Context) (Dashboard, error) {
	var d Dashboard
	if err := c.send(ctx, call{op: "dashboard", method: http.MethodGet, path: []string{"reports", "dashboard"}}, &d); err != nil {
		return Dashboard{}, err
	}
	return d, nil
}

type call struct {
	op     string
	method string
	path   []string
	body   any
	public bool
}

func (c *Client) tenant(op string) (int, error) {
	s, ok := c.session.Current()
	if !ok {
		return 0, failure.New(failure.Unauthorized, op, "not signed in")
	}
	return s.TenantID, nil
}

func (c *Client) send(ctx context.Context, in call, dest any) error {
	if c == nil {
		return failure.New(failure.Network, in.op, "client is nil")
	}
	token := ""
	if !in.public {
		s, ok := c.session.Current()
		if !ok {
			return failure.New(failure.Unauthorized, in.op, "not signed in")
		}
		token = s.Token
	}

	var body io.Reader
	if in.body != nil {
		data, err := codec.Marshal(in.body)
		if err != nil {
			return failure.Wrap(failure.Validation, in.op, fmt.Errorf("encode request: %w", err))
		}
		body = bytes.NewReader(data)
	}

	reqURL := c.baseURL.JoinPath(in.path...)
	req, err := http.NewRequestWithContext(ctx, in.method, reqURL.String(), body)
	if err != nil {
		return failure.Wrap(failure.Network, in.op, fmt.Errorf("create request: %w", err))
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("op", in.op).Str("request_id", requestID).Msg("api request failed")
		return failure.Wrap(failure.Network, in.op, fmt.Errorf("execute request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	c.log.Debug().
		Str("op", in.op).
		Str("method", in.method).
		Str("path", reqURL.Path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(started)).
		Str("request_id", requestID).
		Msg("api request")

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return rejection(in.op, resp.StatusCode, raw)
	}
	if dest == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure.Wrap(failure.Network, in.op, fmt.Errorf("read response: %w", err))
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := codec.Unmarshal(data, dest); err != nil {
		return failure.Wrap(failure.Decode, in.op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func rejection(op string, status int, body []byte) error {
	kind := failure.Rejected
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		kind = failure.Unauthorized
	}
	return &failure.Error{
		Kind:    kind,
		Op:      op,
		Status:  status,
		Message: extractMessage(body),
		Err:     errors.New(http.StatusText(status)),
	}
}

// extractMessage pulls operator-readable text out of an error body: a JSON
// string, a problem-details or {message|error} object, or short plain text.
func extractMessage(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}
	switch trimmed[0] {
	case '"':
		var s string
		if codec.Unmarshal(trimmed, &s) == nil {
			return clip(s)
		}
	case '{':
		var obj map[string]any
		if codec.Unmarshal(trimmed, &obj) != nil {
			return ""
		}
		for _, key := range []string{"detail", "message", "title", "error"} {
			if s, ok := obj[key].(string); ok && strings.TrimSpace(s) != "" {
				return clip(s)
			}
		}
		return ""
	case '<', '[':
		return ""
	}
	return clip(string(trimmed))
}

func clip(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxMessageLen {
		return s
	}
	cut := maxMessageLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return strings.TrimSpace(s[:cut]) + "…"
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = defaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api_url %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse api_url %q: missing host", raw)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
