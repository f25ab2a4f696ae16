package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/voidshard/vidpipe/pkg/api/http/common"
	"github.com/voidshard/vidpipe/pkg/structs"
)

// do is a helper to send `in` (if any) to the given URL and unmarshal the response into `out`.
// Error responses are returned as the error the status code stands for (see common.ToError).
func (c *Client) do(ctx context.Context, method string, addr *url.URL, owner string, in interface{}, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, addr.String(), body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if owner != "" {
		req.Header.Set(c.ownerHeader, owner)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}

	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 { // some error code, assume message is error message
		msg := strings.TrimSpace(string(data))
		if known := common.ToError(resp.StatusCode, msg); known != nil {
			return fmt.Errorf("%w: status %d, returned %s", known, resp.StatusCode, msg)
		}
		return fmt.Errorf("bad status code %d, returned %s", resp.StatusCode, msg)
	}

	return json.Unmarshal(data, out)
}

// setQueryString sets the query string of a URL based on the given query object.
func setQueryString(u *url.URL, q *structs.Query) {
	if q == nil {
		return
	}
	q.Sanitize()
	values := u.Query()

	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.PageToken != "" {
		values.Set("page_token", q.PageToken)
	}
	if q.Owner != "" {
		values.Set("owner", q.Owner)
	}
	if q.States != nil {
		ss := []string{}
		for _, s := range q.States {
			ss = append(ss, string(s))
		}
		values["states"] = ss
	}

	u.RawQuery = values.Encode()
}
