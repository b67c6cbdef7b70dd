// Package content talks to the content-addressed store over the IPFS HTTP
// API. Bundles are uploaded before anchoring and optionally pinned after.
package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// requestTimeout bounds every store call independently of the caller's
// context.
const requestTimeout = 30 * time.Second

// Client is a minimal IPFS HTTP API client.
type Client struct {
	base string
	http *http.Client
}

// NewClient builds a client for the store at baseURL, e.g.
// http://127.0.0.1:5001.
func NewClient(baseURL string) *Client {
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: requestTimeout},
	}
}

// BlockStat is the store's view of a stored block.
type BlockStat struct {
	Key  string `json:"Key"`
	Size int    `json:"Size"`
}

// Put uploads data and returns its content id.
func (c *Client) Put(ctx context.Context, data []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "bundle")
	if err != nil {
		return "", errors.Wrap(err, "could not build upload")
	}
	if _, err := fw.Write(data); err != nil {
		return "", errors.Wrap(err, "could not build upload")
	}
	if err := mw.Close(); err != nil {
		return "", errors.Wrap(err, "could not build upload")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/v0/add", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	var res struct {
		Hash string `json:"Hash"`
	}
	if err := c.do(req, &res); err != nil {
		return "", errors.Wrap(err, "could not add content")
	}
	if res.Hash == "" {
		return "", errors.New("store returned no content id")
	}
	return res.Hash, nil
}

// Pin asks the store to keep a content id.
func (c *Client) Pin(ctx context.Context, cid string) error {
	req, err := c.postForm(ctx, "/api/v0/pin/add", cid)
	if err != nil {
		return err
	}
	var res struct {
		Pins []string `json:"Pins"`
	}
	return errors.Wrapf(c.do(req, &res), "could not pin %s", cid)
}

// Stat reports the stored size of a content id.
func (c *Client) Stat(ctx context.Context, cid string) (*BlockStat, error) {
	req, err := c.postForm(ctx, "/api/v0/block/stat", cid)
	if err != nil {
		return nil, err
	}
	res := &BlockStat{}
	if err := c.do(req, res); err != nil {
		return nil, errors.Wrapf(err, "could not stat %s", cid)
	}
	return res, nil
}

// Initialized verifies the store answers its identity call.
func (c *Client) Initialized(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/v0/id", nil)
	if err != nil {
		return err
	}
	var res struct {
		ID string `json:"ID"`
	}
	return errors.Wrap(c.do(req, &res), "content store unreachable")
}

func (c *Client) postForm(ctx context.Context, path, arg string) (*http.Request, error) {
	u := c.base + path + "?arg=" + url.QueryEscape(arg)
	return http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.WithError(err).Debug("Could not close response body")
		}
	}()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("store returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
