// ABOUTME: Locator encoding and resolution for image references
// ABOUTME: Handles data: URIs locally and downloads http(s) URLs with size and private-IP guards

package locator

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// MaxBlobSize caps decoded and downloaded image bytes.
const MaxBlobSize = 10 * 1024 * 1024 // 10MB

const maxRedirects = 10

// Kind is the form a locator takes.
type Kind int

const (
	KindInvalid Kind = iota
	KindData
	KindURL
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindURL:
		return "url"
	default:
		return "invalid"
	}
}

var (
	// ErrUnsupported is returned for locators that are neither data URIs nor http(s) URLs.
	ErrUnsupported = errors.New("unsupported locator")

	// ErrTooLarge is returned when the referenced bytes exceed MaxBlobSize.
	ErrTooLarge = errors.New("image exceeds size limit")

	// ErrPrivateAddress is returned when a URL resolves to a private network
	// address that is not explicitly trusted.
	ErrPrivateAddress = errors.New("access to private IP ranges is not allowed")
)

// Blob is the resolved content of a locator.
type Blob struct {
	Data        []byte
	ContentType string
}

// Extension returns the file extension (with dot) matching the blob's content.
func (b *Blob) Extension() string {
	return mimetype.Detect(b.Data).Extension()
}

// Encode builds a base64 data URI for data.
func Encode(data []byte, contentType string) string {
	if contentType == "" {
		contentType = mimetype.Detect(data).String()
	}
	// Strip parameters such as "; charset=binary"
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// Parse classifies a locator.
func Parse(loc string) (Kind, error) {
	loc = strings.TrimSpace(loc)
	switch {
	case loc == "":
		return KindInvalid, fmt.Errorf("%w: empty", ErrUnsupported)
	case strings.HasPrefix(loc, "data:"):
		return KindData, nil
	}

	u, err := url.Parse(loc)
	if err != nil {
		return KindInvalid, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return KindInvalid, fmt.Errorf("%w: %q", ErrUnsupported, loc)
	}
	return KindURL, nil
}

// DecodeData decodes a data URI. Both base64 and percent-encoded payloads are accepted.
func DecodeData(loc string) (*Blob, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(loc), "data:")
	if !ok {
		return nil, fmt.Errorf("%w: not a data URI", ErrUnsupported)
	}

	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("%w: data URI has no payload", ErrUnsupported)
	}

	isBase64 := false
	contentType := ""
	for i, part := range strings.Split(meta, ";") {
		part = strings.TrimSpace(part)
		switch {
		case i == 0:
			contentType = part
		case strings.EqualFold(part, "base64"):
			isBase64 = true
		}
	}

	var data []byte
	if isBase64 {
		if base64.StdEncoding.DecodedLen(len(payload)) > MaxBlobSize+3 {
			return nil, ErrTooLarge
		}
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
		if err != nil {
			// Some clients emit unpadded payloads
			decoded, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(strings.TrimSpace(payload), "="))
			if err != nil {
				return nil, fmt.Errorf("decode base64 payload: %w", err)
			}
		}
		data = decoded
	} else {
		unescaped, err := url.PathUnescape(payload)
		if err != nil {
			return nil, fmt.Errorf("decode data URI payload: %w", err)
		}
		data = []byte(unescaped)
	}

	if len(data) > MaxBlobSize {
		return nil, ErrTooLarge
	}

	return &Blob{Data: data, ContentType: sniff(data, contentType)}, nil
}

// Resolver turns locators into bytes.
type Resolver struct {
	client       *http.Client
	trustedHosts map[string]bool
}

// NewResolver creates a Resolver. Hosts in trusted may resolve to private
// addresses (the configured server commonly lives on a LAN). Every redirect
// hop is checked; the default client also checks the address it dials.
func NewResolver(client *http.Client, trusted ...string) *Resolver {
	hosts := make(map[string]bool, len(trusted))
	for _, h := range trusted {
		if h != "" {
			hosts[strings.ToLower(h)] = true
		}
	}
	r := &Resolver{trustedHosts: hosts}

	if client == nil {
		client = &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				DialContext:           r.dialContext,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 20 * time.Second,
				MaxIdleConns:          10,
				IdleConnTimeout:       90 * time.Second,
			},
		}
	} else {
		c := *client
		client = &c
	}
	client.CheckRedirect = r.checkRedirect
	r.client = client
	return r
}

// Resolve returns the bytes a locator refers to.
func (r *Resolver) Resolve(ctx context.Context, loc string) (*Blob, error) {
	kind, err := Parse(loc)
	if err != nil {
		return nil, err
	}

	if kind == KindData {
		return DecodeData(loc)
	}
	return r.download(ctx, strings.TrimSpace(loc))
}

// isPrivateIP checks if an IP address is in a private range (loopback is allowed).
func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() {
		return false
	}
	return ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast()
}

// checkHost rejects hosts that resolve to a private address unless trusted.
// Lookup failures pass; the dial fails on its own.
func (r *Resolver) checkHost(ctx context.Context, host string) error {
	host = strings.ToLower(host)
	if r.trustedHosts[host] {
		return nil
	}
	ips, err := net.DefaultResolver.LookupIP(ctx, "ip", host)
	if err != nil {
		return nil
	}
	for _, ip := range ips {
		if isPrivateIP(ip) {
			return ErrPrivateAddress
		}
	}
	return nil
}

func (r *Resolver) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	return r.checkHost(req.Context(), req.URL.Hostname())
}

// dialContext re-checks the resolved address at connect time so a DNS answer
// that changed since checkHost cannot reach a private network.
func (r *Resolver) dialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	d := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	if !r.trustedHosts[strings.ToLower(host)] {
		d.Control = guardAddress
	}
	return d.DialContext(ctx, network, addr)
}

// guardAddress is a net.Dialer Control hook; address is the resolved ip:port.
func guardAddress(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	host, _, _ = strings.Cut(host, "%")
	if ip := net.ParseIP(host); ip != nil && isPrivateIP(ip) {
		return ErrPrivateAddress
	}
	return nil
}

func (r *Resolver) download(ctx context.Context, rawURL string) (*Blob, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	if err := r.checkHost(ctx, parsed.Hostname()); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxBlobSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(data) > MaxBlobSize {
		return nil, ErrTooLarge
	}

	return &Blob{Data: data, ContentType: sniff(data, resp.Header.Get("Content-Type"))}, nil
}

// sniff prefers a declared image type and falls back to content detection.
func sniff(data []byte, declared string) string {
	declared = strings.TrimSpace(declared)
	if i := strings.Index(declared, ";"); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}
	if strings.HasPrefix(declared, "image/") {
		return declared
	}
	mt := mimetype.Detect(data).String()
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return mt
}
