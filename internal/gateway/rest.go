// ABOUTME: REST backend for the imageUploader service (GET /get/{limit}, POST /upload)
// ABOUTME: Windows cumulative listings into pages and maps failures to TransferError

package gateway

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

	"github.com/google/uuid"

	"github.com/harper/snapfeed/internal/locator"
	"github.com/harper/snapfeed/internal/models"
)

const (
	listPath   = "/imageUploader/get/"
	uploadPath = "/imageUploader/upload"
)

// DefaultUserAgent is sent when RESTOptions.UserAgent is empty.
const DefaultUserAgent = "snapfeed/dev (image feed client)"

// RESTOptions configures a RESTClient.
type RESTOptions struct {
	PageSize   int
	Timeout    time.Duration
	UserAgent  string
	HTTPClient *http.Client
}

// RESTClient talks to the imageUploader REST service.
type RESTClient struct {
	baseURL   *url.URL
	pageSize  int
	userAgent string
	http      *http.Client
}

// Compile-time check that RESTClient implements Gateway.
var _ Gateway = (*RESTClient)(nil)

// NewRESTClient creates a client for the service rooted at serverURL.
func NewRESTClient(serverURL string, opts RESTOptions) (*RESTClient, error) {
	parsed, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("server URL must use http or https scheme, got: %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("server URL must have a host")
	}
	if opts.PageSize <= 0 {
		return nil, fmt.Errorf("page size must be positive, got %d", opts.PageSize)
	}

	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}

	return &RESTClient{
		baseURL:   parsed,
		pageSize:  opts.PageSize,
		userAgent: ua,
		http:      client,
	}, nil
}

// Host returns the host of the configured server.
func (c *RESTClient) Host() string {
	return c.baseURL.Hostname()
}

// FetchPage requests the newest cursor+pageSize items and returns the ones
// after cursor. The service only knows cumulative limits, so a listing of
// cursor items or fewer means there is nothing left.
func (c *RESTClient) FetchPage(ctx context.Context, cursor int) ([]models.Item, error) {
	const op = "fetch_page"

	limit := cursor + c.pageSize
	endpoint := c.baseURL.String() + listPath + strconv.Itoa(limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, newTransferError(op, KindNetwork, fmt.Errorf("failed to create request: %w", err))
	}
	c.setHeaders(req)

	body, err := c.do(op, req)
	if err != nil {
		return nil, err
	}

	var listing []models.Item
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, newTransferError(op, KindDecode, err)
	}

	return window(listing, cursor), nil
}

type uploadBody struct {
	Image string `json:"image"`
	Link  string `json:"link"`
}

type uploadResponse struct {
	Status  bool         `json:"status"`
	Doc     *models.Item `json:"doc"`
	Message string       `json:"message,omitempty"`
}

// Upload posts the image as a data URI and returns the created document.
func (c *RESTClient) Upload(ctx context.Context, up *UploadRequest) (*models.Item, error) {
	const op = "upload"

	if up == nil || len(up.Data) == 0 {
		return nil, newTransferError(op, KindRejected, errors.New("empty upload"))
	}

	payload, err := json.Marshal(uploadBody{
		Image: up.Label,
		Link:  locator.Encode(up.Data, up.ContentType),
	})
	if err != nil {
		return nil, newTransferError(op, KindDecode, err)
	}
	if len(payload) > MaxUploadSize {
		return nil, newTransferError(op, KindTooLarge, fmt.Errorf("payload is %d bytes, limit %d", len(payload), MaxUploadSize))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL.String()+uploadPath, bytes.NewReader(payload))
	if err != nil {
		return nil, newTransferError(op, KindNetwork, fmt.Errorf("failed to create request: %w", err))
	}
	c.setHeaders(req)

	body, err := c.do(op, req)
	if err != nil {
		return nil, err
	}

	var resp uploadResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, newTransferError(op, KindDecode, err)
	}
	if !resp.Status {
		msg := resp.Message
		if msg == "" {
			msg = "service reported failure"
		}
		return nil, newTransferError(op, KindRejected, errors.New(msg))
	}
	if resp.Doc == nil || !resp.Doc.Valid() {
		return nil, newTransferError(op, KindDecode, errors.New("response has no document id"))
	}

	return resp.Doc, nil
}

func (c *RESTClient) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", uuid.New().String())
}

// do executes req and returns the size-capped body of a 2xx response.
func (c *RESTClient) do(op string, req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, newTransferError(op, KindNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &TransferError{Op: op, Kind: KindStatus, Status: resp.StatusCode}
	}

	limited := io.LimitReader(resp.Body, MaxResponseSize+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, newTransferError(op, KindNetwork, fmt.Errorf("failed to read response body: %w", err))
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, newTransferError(op, KindTooLarge, fmt.Errorf("response exceeds %d bytes", MaxResponseSize))
	}

	return body, nil
}
