package client

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/voidshard/vidpipe/pkg/api/http/common"
	"github.com/voidshard/vidpipe/pkg/structs"
)

// Client talks to a vidpipe server. It implements api.API.
type Client struct {
	url         *url.URL
	ownerHeader string
	http        *http.Client
}

func New(address string) (*Client, error) {
	u, err := url.Parse(address)
	return &Client{url: u, ownerHeader: common.HEADER_OWNER, http: &http.Client{}}, err
}

// WithOwnerHeader sets the header identities are sent in, if the server was
// configured with something other than the default.
func (c *Client) WithOwnerHeader(name string) *Client {
	c.ownerHeader = name
	return c
}

func (c *Client) Submit(ctx context.Context, owner string, req *structs.SubmitRequest) (*structs.StatusResponse, error) {
	addr := c.addr(common.API_JOBS, "")
	var out structs.StatusResponse
	return &out, c.do(ctx, http.MethodPost, addr, owner, req, &out)
}

func (c *Client) Status(ctx context.Context, id string) (*structs.StatusResponse, error) {
	addr := c.addr(common.API_JOB, id)
	var out structs.StatusResponse
	return &out, c.do(ctx, http.MethodGet, addr, "", nil, &out)
}

func (c *Client) Cancel(ctx context.Context, id, requester string) (*structs.StatusResponse, error) {
	addr := c.addr(common.API_CANCEL, id)
	var out structs.StatusResponse
	return &out, c.do(ctx, http.MethodPost, addr, requester, nil, &out)
}

func (c *Client) Jobs(ctx context.Context, q *structs.Query) (*structs.ListResponse, error) {
	addr := c.addr(common.API_JOBS, "")
	setQueryString(addr, q)
	var out structs.ListResponse
	return &out, c.do(ctx, http.MethodGet, addr, "", nil, &out)
}

func (c *Client) Result(ctx context.Context, id, requester string) (*structs.ResultResponse, error) {
	addr := c.addr(common.API_RESULT, id)
	var out structs.ResultResponse
	return &out, c.do(ctx, http.MethodGet, addr, requester, nil, &out)
}

func (c *Client) addr(path, id string) *url.URL {
	if id != "" {
		path = strings.Replace(path, "{id}", url.PathEscape(id), 1)
	}
	return &url.URL{Scheme: c.url.Scheme, Host: c.url.Host, Path: path}
}
