package fetch_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/crxsrc/pkg/crxsrc/fetch"
)

const storeURL = "https://chromewebstore.google.com/detail/some-extension/abcdefghijklmnopabcdefghijklmnop"

type fakeHTTP struct {
	status int
	body   string
	err    error
	got    *http.Request
}

func (f *fakeHTTP) Do(req *http.Request) (*http.Response, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &http.Response{
		StatusCode: f.status,
		Body:       io.NopCloser(strings.NewReader(f.body)),
	}, nil
}

type fakeS3 struct {
	body  string
	err   error
	input *s3.GetObjectInput
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(f.body))}, nil
}

func TestExtensionID(t *testing.T) {
	id, err := fetch.ExtensionID(storeURL)
	require.NoError(t, err)
	assert.Equal(t, "abcdefghijklmnopabcdefghijklmnop", id)

	id, err = fetch.ExtensionID("https://chrome.google.com/webstore/detail/ABCDEFGHIJKLMNOPABCDEFGHIJKLMNOP?hl=en")
	require.NoError(t, err)
	assert.Equal(t, "ABCDEFGHIJKLMNOPABCDEFGHIJKLMNOP", id, "matching is case-insensitive")

	_, err = fetch.ExtensionID("https://example.com/detail/short")
	assert.ErrorIs(t, err, fetch.ErrNoExtensionID)
}

func TestDownloadURL(t *testing.T) {
	want := "https://clients2.google.com/service/update2/crx?response=redirect&prodversion=91.0" +
		"&acceptformat=crx2,crx3&x=id%3Dabcdefghijklmnopabcdefghijklmnop%26uc"
	assert.Equal(t, want, fetch.DownloadURL("abcdefghijklmnopabcdefghijklmnop", fetch.DefaultProdVersion))
}

func TestParseS3URL(t *testing.T) {
	bucket, key, err := fetch.ParseS3URL("s3://artifacts/ext/v1/pkg.crx")
	require.NoError(t, err)
	assert.Equal(t, "artifacts", bucket)
	assert.Equal(t, "ext/v1/pkg.crx", key)

	for _, bad := range []string{"s3://bucket", "s3:///key", "https://x/y"} {
		_, _, err := fetch.ParseS3URL(bad)
		assert.Error(t, err, bad)
	}
}

func TestFetch_Store(t *testing.T) {
	dir := t.TempDir()
	client := &fakeHTTP{status: http.StatusOK, body: "Cr24 payload"}
	f := fetch.New(fetch.WithHTTPClient(client))

	dest := filepath.Join(dir, "ext.crx")
	got, err := f.Fetch(context.Background(), storeURL, dest)
	require.NoError(t, err)
	assert.Equal(t, dest, got)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "Cr24 payload", string(data))

	require.NotNil(t, client.got)
	assert.Equal(t, "clients2.google.com", client.got.URL.Host)
	assert.Equal(t, "id=abcdefghijklmnopabcdefghijklmnop&uc", client.got.URL.Query().Get("x"))
}

func TestFetch_DefaultDest(t *testing.T) {
	t.Chdir(t.TempDir())
	f := fetch.New(fetch.WithHTTPClient(&fakeHTTP{status: http.StatusOK, body: "x"}))

	got, err := f.Fetch(context.Background(), storeURL, "")
	require.NoError(t, err)
	assert.Equal(t, "abcdefghijklmnopabcdefghijklmnop.crx", got)
	assert.FileExists(t, got)
}

func TestFetch_StoreErrors(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "ext.crx")

	t.Run("non-2xx status", func(t *testing.T) {
		f := fetch.New(fetch.WithHTTPClient(&fakeHTTP{status: http.StatusNotFound, body: "gone"}))
		_, err := f.Fetch(context.Background(), storeURL, dest)

		var serr *fetch.StatusError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, 404, serr.StatusCode)
		assert.NoFileExists(t, dest)
	})

	t.Run("transport failure", func(t *testing.T) {
		f := fetch.New(fetch.WithHTTPClient(&fakeHTTP{err: errors.New("dial tcp: refused")}))
		_, err := f.Fetch(context.Background(), storeURL, dest)
		assert.ErrorContains(t, err, "refused")
	})

	t.Run("invalid URL", func(t *testing.T) {
		_, err := fetch.New().Fetch(context.Background(), "not a url", dest)
		assert.Error(t, err)
	})

	t.Run("empty source", func(t *testing.T) {
		_, err := fetch.New().Fetch(context.Background(), "", dest)
		assert.Error(t, err)
	})

	t.Run("no id", func(t *testing.T) {
		_, err := fetch.New().Fetch(context.Background(), "https://example.com/x", dest)
		assert.ErrorIs(t, err, fetch.ErrNoExtensionID)
	})
}

func TestFetch_S3(t *testing.T) {
	dir := t.TempDir()
	client := &fakeS3{body: "PK\x03\x04"}
	f := fetch.New(fetch.WithS3Client(client))

	dest := filepath.Join(dir, "pkg.zip")
	got, err := f.Fetch(context.Background(), "s3://artifacts/builds/pkg.zip", dest)
	require.NoError(t, err)
	assert.Equal(t, dest, got)
	assert.Equal(t, "artifacts", aws.ToString(client.input.Bucket))
	assert.Equal(t, "builds/pkg.zip", aws.ToString(client.input.Key))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "PK\x03\x04", string(data))

	t.Run("default dest is the key's base name", func(t *testing.T) {
		t.Chdir(t.TempDir())
		got, err := f.Fetch(context.Background(), "s3://artifacts/builds/pkg.zip", "")
		require.NoError(t, err)
		assert.Equal(t, "pkg.zip", got)
	})

	t.Run("get failure", func(t *testing.T) {
		f := fetch.New(fetch.WithS3Client(&fakeS3{err: errors.New("NoSuchKey")}))
		_, err := f.Fetch(context.Background(), "s3://artifacts/missing.crx", dest)
		assert.ErrorContains(t, err, "NoSuchKey")
	})

	t.Run("no client", func(t *testing.T) {
		_, err := fetch.New().Fetch(context.Background(), "s3://artifacts/x.crx", dest)
		assert.ErrorIs(t, err, fetch.ErrNoS3Client)
	})
}
