package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultMaxBytes caps a single attachment. WhatsApp limits video to 16 MB;
// the margin covers documents sent as media.
const DefaultMaxBytes = 64 << 20

// File is an attachment saved to the scratch directory.
type File struct {
	Path        string
	ContentType string
	Size        int64
}

// ReadAll returns the file contents.
func (f *File) ReadAll() ([]byte, error) {
	return os.ReadFile(f.Path)
}

// Remove deletes the scratch copy. Errors are logged, not returned.
func (f *File) Remove() {
	if f == nil || f.Path == "" {
		return
	}
	if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("path", f.Path).Msg("Failed to remove scratch file")
	}
}

// Fetcher downloads an attachment by URL.
type Fetcher interface {
	Fetch(ctx context.Context, mediaURL, contentType string) (*File, error)
}

// Downloader fetches provider-hosted media with HTTP basic auth (the Twilio
// account SID and auth token) and writes it under a scratch directory.
// Credentials are only sent to trusted hosts: https twilio.com and its
// subdomains, plus any added with WithTrustedHosts.
type Downloader struct {
	client     *http.Client
	username   string
	password   string
	scratchDir string
	maxBytes   int64
	trusted    map[string]bool
	restrict   bool
}

// NewDownloader returns a Downloader. Empty credentials send no
// Authorization header.
func NewDownloader(username, password, scratchDir string) *Downloader {
	return &Downloader{
		client:     &http.Client{Timeout: 2 * time.Minute},
		username:   username,
		password:   password,
		scratchDir: scratchDir,
		maxBytes:   DefaultMaxBytes,
	}
}

// WithHTTPClient replaces the HTTP client.
func (d *Downloader) WithHTTPClient(c *http.Client) *Downloader {
	d.client = c
	return d
}

// WithTrustedHosts adds exact hostnames that receive credentials.
func (d *Downloader) WithTrustedHosts(hosts ...string) *Downloader {
	if d.trusted == nil {
		d.trusted = make(map[string]bool)
	}
	for _, h := range hosts {
		d.trusted[strings.ToLower(h)] = true
	}
	return d
}

// RestrictToTrusted makes Fetch refuse untrusted hosts instead of fetching
// them anonymously. Used when inbound webhooks are not signature checked,
// since the media URL then comes from an unauthenticated request.
func (d *Downloader) RestrictToTrusted(on bool) *Downloader {
	d.restrict = on
	return d
}

func (d *Downloader) isTrusted(u *url.URL) bool {
	host := strings.ToLower(u.Hostname())
	if d.trusted[host] {
		return true
	}
	return u.Scheme == "https" && (host == "twilio.com" || strings.HasSuffix(host, ".twilio.com"))
}

// WithMaxBytes changes the size cap.
func (d *Downloader) WithMaxBytes(n int64) *Downloader {
	d.maxBytes = n
	return d
}

// Fetch downloads mediaURL. contentType is the provider's declared type and
// picks the file extension; the response Content-Type wins when present.
// Twilio answers media URLs with a redirect to its CDN; the Authorization
// header is not forwarded across hosts.
func (d *Downloader) Fetch(ctx context.Context, mediaURL, contentType string) (*File, error) {
	if mediaURL == "" {
		return nil, fmt.Errorf("media: empty URL")
	}
	start := time.Now()

	u, err := url.Parse(mediaURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("media: invalid URL %q", mediaURL)
	}
	trusted := d.isTrusted(u)
	if !trusted && d.restrict {
		return nil, fmt.Errorf("media: host %s is not trusted", u.Hostname())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("media: build request: %w", err)
	}
	if d.username != "" && trusted {
		req.SetBasicAuth(d.username, d.password)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("media: download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("media: download returned status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/octet-stream") {
		contentType = ct
	}

	if err := os.MkdirAll(d.scratchDir, 0o755); err != nil {
		return nil, fmt.Errorf("media: create scratch dir: %w", err)
	}
	path := filepath.Join(d.scratchDir, uuid.New().String()+ExtensionFor(contentType))
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("media: create file: %w", err)
	}

	// Read one byte past the cap to detect oversize bodies.
	n, err := io.Copy(f, io.LimitReader(resp.Body, d.maxBytes+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && n > d.maxBytes {
		err = fmt.Errorf("attachment exceeds %d bytes", d.maxBytes)
	}
	if err == nil && n == 0 {
		err = fmt.Errorf("attachment is empty")
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("media: save: %w", err)
	}

	log.Debug().
		Str("path", path).
		Str("content_type", contentType).
		Int64("bytes", n).
		Dur("duration", time.Since(start)).
		Msg("Attachment downloaded")

	return &File{Path: path, ContentType: contentType, Size: n}, nil
}
