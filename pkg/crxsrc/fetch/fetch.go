// Package fetch downloads extension packages from the Chrome Web Store or
// from S3-compatible object storage.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/jamesainslie/crxsrc/pkg/crxsrc/fsutil"
	"github.com/jamesainslie/crxsrc/pkg/crxsrc/logging"
)

// UpdateURL is the Chrome Web Store update endpoint that redirects to the
// package download.
const UpdateURL = "https://clients2.google.com/service/update2/crx"

// DefaultProdVersion is the browser version reported to the update
// endpoint.
const DefaultProdVersion = "91.0"

var (
	// ErrNoExtensionID is returned when a store URL carries no extension id.
	ErrNoExtensionID = errors.New("no extension id in URL")

	// ErrNoS3Client is returned for s3:// sources when no client was
	// configured.
	ErrNoS3Client = errors.New("no S3 client configured")
)

var extensionIDPattern = regexp.MustCompile(`(?i)/([a-z]{32})`)

// StatusError reports a non-2xx download response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP status %d", e.URL, e.StatusCode)
}

// HTTPDoer is the part of *http.Client used by Fetcher.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ObjectGetter is the part of *s3.Client used by Fetcher.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Fetcher downloads packages to local files.
type Fetcher struct {
	http        HTTPDoer
	s3          ObjectGetter
	prodVersion string
	log         *logging.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets the client used for store downloads.
func WithHTTPClient(c HTTPDoer) Option {
	return func(f *Fetcher) { f.http = c }
}

// WithS3Client enables s3:// sources.
func WithS3Client(c ObjectGetter) Option {
	return func(f *Fetcher) { f.s3 = c }
}

// WithProdVersion overrides the browser version sent to the store.
func WithProdVersion(v string) Option {
	return func(f *Fetcher) { f.prodVersion = v }
}

// New returns a Fetcher. Without WithHTTPClient it uses http.DefaultClient.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		http:        http.DefaultClient,
		prodVersion: DefaultProdVersion,
		log:         logging.Get("fetch"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ExtensionID returns the 32-letter extension id embedded in a store URL.
func ExtensionID(rawURL string) (string, error) {
	m := extensionIDPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return "", fmt.Errorf("%w: %s", ErrNoExtensionID, rawURL)
	}
	return m[1], nil
}

// DownloadURL builds the update endpoint URL for an extension id.
func DownloadURL(id, prodVersion string) string {
	return UpdateURL +
		"?response=redirect" +
		"&prodversion=" + url.QueryEscape(prodVersion) +
		"&acceptformat=crx2,crx3" +
		"&x=" + url.QueryEscape("id="+id+"&uc")
}

// ParseS3URL splits s3://bucket/key into its parts.
func ParseS3URL(raw string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(raw, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 URL: %s", raw)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 URL needs a bucket and a key: %s", raw)
	}
	return bucket, key, nil
}

// Fetch downloads source to dest and returns the path written. source is a
// Chrome Web Store URL or an s3://bucket/key URL. An empty dest defaults to
// <id>.crx for store URLs and to the key's base name for S3.
func (f *Fetcher) Fetch(ctx context.Context, source, dest string) (string, error) {
	if source == "" {
		return "", errors.New("source URL cannot be empty")
	}
	if strings.HasPrefix(source, "s3://") {
		return f.fetchS3(ctx, source, dest)
	}
	return f.fetchStore(ctx, source, dest)
}

func (f *Fetcher) fetchStore(ctx context.Context, source, dest string) (string, error) {
	if _, err := url.ParseRequestURI(source); err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}

	id, err := ExtensionID(source)
	if err != nil {
		return "", err
	}
	if dest == "" {
		dest = id + ".crx"
	}

	target := DownloadURL(id, f.prodVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}

	f.log.Info("downloading extension", "id", id, "dest", dest)

	resp, err := f.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading %s: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", &StatusError{URL: target, StatusCode: resp.StatusCode}
	}

	return f.save(dest, resp.Body)
}

func (f *Fetcher) fetchS3(ctx context.Context, source, dest string) (string, error) {
	bucket, key, err := ParseS3URL(source)
	if err != nil {
		return "", err
	}
	if f.s3 == nil {
		return "", ErrNoS3Client
	}
	if dest == "" {
		dest = path.Base(key)
	}

	f.log.Info("downloading object", "bucket", bucket, "key", key, "dest", dest)

	out, err := f.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("get S3 object %s: %w", source, err)
	}
	defer out.Body.Close()

	return f.save(dest, out.Body)
}

func (f *Fetcher) save(dest string, r io.Reader) (string, error) {
	n, err := fsutil.CopyAtomic(dest, r, 0o644)
	if err != nil {
		return "", err
	}
	f.log.Info("download complete", "dest", dest, "bytes", n)
	return dest, nil
}
