package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"github.com/caasmo/banlog/addr"
	"github.com/caasmo/banlog/index"
)

// requestTimeout bounds each admin call; Import and Dump hold the index
// lock while they touch disk.
const requestTimeout = 30 * time.Second

// Client talks to the admin socket of a running server. It implements
// Bans; the read methods report a failed call as an absent or empty
// result.
type Client struct {
	http *http.Client
}

func NewClient(socketPath string) *Client {
	return &Client{http: &http.Client{
		Timeout: requestTimeout,
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", socketPath)
			},
		},
	}}
}

// Ping succeeds when a server answers on the socket.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.status(ctx)
	return err
}

func (c *Client) status(ctx context.Context) (statusData, error) {
	var st statusData
	err := c.do(ctx, http.MethodGet, "/status", nil, &st)
	return st, err
}

func (c *Client) Available() bool {
	st, err := c.status(context.Background())
	return err == nil && st.Available
}

func (c *Client) Add(k addr.Key, name string) (index.Entry, error) {
	var e jsonEntry
	if err := c.do(context.Background(), http.MethodPut, banPath(k), addRequest{Name: name}, &e); err != nil {
		return index.Entry{}, err
	}
	return e.entry(), nil
}

func (c *Client) Remove(k addr.Key) (index.Entry, error) {
	var e jsonEntry
	if err := c.do(context.Background(), http.MethodDelete, banPath(k), nil, &e); err != nil {
		return index.Entry{}, err
	}
	return e.entry(), nil
}

func (c *Client) Get(k addr.Key) (index.Entry, bool) {
	var e jsonEntry
	if err := c.do(context.Background(), http.MethodGet, banPath(k), nil, &e); err != nil {
		return index.Entry{}, false
	}
	return e.entry(), true
}

func (c *Client) Entries() []index.Entry {
	var list []jsonEntry
	if err := c.do(context.Background(), http.MethodGet, "/bans", nil, &list); err != nil {
		return nil
	}
	out := make([]index.Entry, len(list))
	for i, e := range list {
		out[i] = e.entry()
	}
	return out
}

func (c *Client) Dump() error {
	return c.do(context.Background(), http.MethodPost, "/dump", nil, nil)
}

// Import sends path as an absolute path since the server may run in
// another working directory.
func (c *Client) Import(path string) (int, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return 0, err
	}
	var data importData
	err = c.do(context.Background(), http.MethodPost, "/import", importRequest{Path: abs}, &data)
	return data.Merged, err
}

func (c *Client) Save() error {
	return c.do(context.Background(), http.MethodPost, "/save", nil, nil)
}

func banPath(k addr.Key) string {
	return "/bans/" + url.PathEscape(k.String())
}

// do sends body as JSON and decodes the data of the reply into out, which
// is filled even when the server reports an error.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, "http://banlog"+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("admin: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var reply jsonReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return fmt.Errorf("admin: %s %s: invalid reply (status %d): %w", method, path, resp.StatusCode, err)
	}
	if out != nil && len(reply.Data) > 0 {
		if err := json.Unmarshal(reply.Data, out); err != nil {
			return fmt.Errorf("admin: %s %s: invalid data: %w", method, path, err)
		}
	}
	if reply.Code != CodeOk {
		return decodeError(reply.JsonBasic)
	}
	return nil
}
