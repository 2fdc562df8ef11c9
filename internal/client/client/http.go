package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/gradekeeper/internal/common"
	"github.com/dmitrijs2005/gradekeeper/internal/netx"
)

const defaultTimeout = 15 * time.Second

type HTTPClient struct {
	baseURL string
	role    string
	hc      *http.Client
}

type HTTPOption func(*HTTPClient)

// WithRole sends role in the X-Role header on every request.
func WithRole(role string) HTTPOption {
	return func(c *HTTPClient) { c.role = role }
}

func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(c *HTTPClient) { c.hc = hc }
}

func NewHTTPClient(baseURL string, opts ...HTTPOption) (*HTTPClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server url %q", baseURL)
	}
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *HTTPClient) header() http.Header {
	h := http.Header{}
	if c.role != "" {
		h.Set(common.RoleHeaderName, c.role)
	}
	return h
}

func (c *HTTPClient) Push(ctx context.Context, changes []common.Change) ([]common.PushResult, error) {
	var resp common.PushResponse
	err := netx.DoJSON(ctx, c.hc, http.MethodPost, c.baseURL+"/push", c.header(), common.PushRequest{Changes: changes}, &resp)
	if err != nil {
		return nil, c.mapError(err)
	}
	return resp.Results, nil
}

func (c *HTTPClient) Pull(ctx context.Context, since int64) ([]common.RemoteItem, error) {
	var resp common.PullResponse
	u := c.baseURL + "/pull?since=" + strconv.FormatInt(since, 10)
	if err := netx.DoJSON(ctx, c.hc, http.MethodGet, u, c.header(), nil, &resp); err != nil {
		return nil, c.mapError(err)
	}
	return resp.Items, nil
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	if err := netx.DoJSON(ctx, c.hc, http.MethodGet, c.baseURL+"/health", nil, nil, nil); err != nil {
		return c.mapError(err)
	}
	return nil
}

func (c *HTTPClient) mapError(err error) error {
	var se *netx.StatusError
	if !errors.As(err, &se) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	switch {
	case se.Code == http.StatusUnauthorized:
		return fmt.Errorf("%w: %v", ErrUnauthorized, se)
	case se.Code == http.StatusForbidden:
		return fmt.Errorf("%w: %v", ErrForbidden, se)
	case se.Code >= 500:
		return fmt.Errorf("%w: %v", ErrUnavailable, se)
	default:
		return fmt.Errorf("%w: %v", ErrRejected, se)
	}
}
