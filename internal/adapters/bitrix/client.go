// Package bitrix is a read-only client for the Bitrix24 REST API reached
// through an incoming webhook URL.
package bitrix

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/okian/b24stats/internal/domain/model"
	"github.com/okian/b24stats/pkg/logger"
	"github.com/okian/b24stats/pkg/metrics"
)

// Remote methods used by the client.
const (
	MethodUsers     = "user.get"
	MethodCompanies = "crm.company.list"
	MethodDeals     = "crm.deal.list"
)

var (
	companyFields = []string{"ID", "TITLE", "ASSIGNED_BY_ID"}
	dealFields    = []string{"ID", "TITLE", "COMPANY_ID", "ASSIGNED_BY_ID"}
)

// Client fetches employees, companies and deals. It keeps no state
// between calls and is safe for concurrent use.
type Client struct {
	webhook  *url.URL
	http     *http.Client
	maxPages int
	logger   logger.Logger
	metrics  *metrics.Manager
}

// New builds a client for webhook, e.g.
// "https://portal.bitrix24.ru/rest/1/secret/". A missing trailing slash
// is added.
func New(webhook string, opts ...Option) (*Client, error) {
	u, err := ParseWebhook(webhook)
	if err != nil {
		return nil, err
	}

	c := &Client{
		webhook:  u,
		http:     &http.Client{Timeout: defaultTimeout},
		maxPages: defaultMaxPages,
		metrics:  metrics.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Named("bitrix")
	}
	return c, nil
}

// ParseWebhook validates an absolute http(s) webhook URL and normalises
// it to end with "/".
func ParseWebhook(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty", ErrBadWebhook)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadWebhook, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q is not an absolute http(s) url", ErrBadWebhook, raw)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u, nil
}

// FetchEmployees returns every user visible to the webhook.
func (c *Client) FetchEmployees(ctx context.Context) ([]model.Employee, error) {
	const op = "bitrix.fetch_employees"
	users, err := fetchAll[userDTO](ctx, c, op, MethodUsers, nil)
	if err != nil {
		return nil, err
	}
	out := make([]model.Employee, len(users))
	for i, u := range users {
		out[i] = u.toModel()
	}
	c.logger.Debug(ctx, "fetched employees", logger.Int("count", len(out)))
	return out, nil
}

// FetchCompanies returns companies created within period, both ends inclusive.
func (c *Client) FetchCompanies(ctx context.Context, period model.Period) ([]model.Company, error) {
	const op = "bitrix.fetch_companies"
	req := &listRequest{Filter: createdWithin(period), Select: companyFields}
	rows, err := fetchAll[companyDTO](ctx, c, op, MethodCompanies, req)
	if err != nil {
		return nil, err
	}
	out := make([]model.Company, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	c.logger.Debug(ctx, "fetched companies", logger.String("period", period.String()), logger.Int("count", len(out)))
	return out, nil
}

// FetchDeals returns deals created within period, both ends inclusive.
func (c *Client) FetchDeals(ctx context.Context, period model.Period) ([]model.Deal, error) {
	const op = "bitrix.fetch_deals"
	req := &listRequest{Filter: createdWithin(period), Select: dealFields}
	rows, err := fetchAll[dealDTO](ctx, c, op, MethodDeals, req)
	if err != nil {
		return nil, err
	}
	out := make([]model.Deal, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	c.logger.Debug(ctx, "fetched deals", logger.String("period", period.String()), logger.Int("count", len(out)))
	return out, nil
}

// createdWithin is the server-side creation date filter. Times of day are
// dropped.
func createdWithin(p model.Period) map[string]string {
	return map[string]string{
		">=DATE_CREATE": model.FormatDate(p.Start),
		"<=DATE_CREATE": model.FormatDate(p.End),
	}
}

// fetchAll calls method page by page, following the "next" cursor, and
// decodes every page's result into T.
func fetchAll[T any](ctx context.Context, c *Client, op, method string, req *listRequest) ([]T, error) {
	start := time.Now()
	var out []T
	offset := 0

	for page := 0; ; page++ {
		if page >= c.maxPages {
			err := &Error{Op: op, Method: method, Kind: ErrTransport, Err: fmt.Errorf("%w (%d)", ErrTooManyPages, c.maxPages)}
			return nil, c.fail(ctx, method, start, err)
		}

		env, err := c.call(ctx, op, method, req, offset)
		if err != nil {
			return nil, c.fail(ctx, method, start, err)
		}
		c.metrics.RecordRemotePage(method)

		var rows []T
		if len(env.Result) > 0 && string(env.Result) != "null" {
			if err := json.Unmarshal(env.Result, &rows); err != nil {
				err = &Error{Op: op, Method: method, Kind: ErrTransport, Status: http.StatusOK, Err: fmt.Errorf("decode result: %w", err)}
				return nil, c.fail(ctx, method, start, err)
			}
		}
		out = append(out, rows...)

		if env.Next == nil || *env.Next <= offset {
			break
		}
		offset = *env.Next
	}

	c.metrics.RecordRemoteRequest(method, "ok", float64(time.Since(start).Milliseconds()))
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// fail records metrics and a log line for err and returns it unchanged.
func (c *Client) fail(ctx context.Context, method string, start time.Time, err error) error {
	kind := KindLabel(err)
	c.metrics.RecordRemoteRequest(method, "error", float64(time.Since(start).Milliseconds()))
	c.metrics.RecordRemoteError(method, kind)
	c.logger.Error(ctx, "bitrix call failed",
		logger.String("method", method),
		logger.String("kind", kind),
		logger.Error(err),
	)
	return err
}

// call performs one HTTP round trip. user.get goes out as GET with the
// offset in the query; list methods are POSTed as JSON.
func (c *Client) call(ctx context.Context, op, method string, req *listRequest, offset int) (*envelope, error) {
	endpoint := c.webhook.ResolveReference(&url.URL{Path: method})

	var httpReq *http.Request
	var err error
	if req == nil {
		if offset > 0 {
			q := endpoint.Query()
			q.Set("start", strconv.Itoa(offset))
			endpoint.RawQuery = q.Encode()
		}
		httpReq, err = http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), http.NoBody)
	} else {
		body := *req
		body.Start = offset
		var payload []byte
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, &Error{Op: op, Method: method, Kind: ErrTransport, Err: fmt.Errorf("encode request: %w", err)}
		}
		httpReq, err = http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(payload))
		if httpReq != nil {
			httpReq.Header.Set("Content-Type", "application/json")
		}
	}
	if err != nil {
		return nil, &Error{Op: op, Method: method, Kind: ErrTransport, Err: err}
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &Error{Op: op, Method: method, Kind: ErrTransport, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, defaultMaxBodySize))
	if err != nil {
		return nil, &Error{Op: op, Method: method, Kind: ErrTransport, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode != http.StatusOK || env.Error != "" {
		e := &Error{
			Op:          op,
			Method:      method,
			Kind:        classify(resp.StatusCode, env.Error),
			Status:      resp.StatusCode,
			Code:        env.Error,
			Description: env.ErrorDescription,
		}
		if e.Code == "" && decodeErr != nil {
			e.Err = errors.New(http.StatusText(resp.StatusCode))
		}
		return nil, e
	}
	if decodeErr != nil {
		return nil, &Error{Op: op, Method: method, Kind: ErrTransport, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", decodeErr)}
	}
	return &env, nil
}
