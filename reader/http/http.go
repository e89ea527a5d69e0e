// Package http downloads remote files with go-getter. As the source of a
// chain it fetches origin, chained it fetches every upstream string entry.
package http

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-getter"

	"github.com/vocabstream/vocabstream/log"
	"github.com/vocabstream/vocabstream/message"
	"github.com/vocabstream/vocabstream/reader"
	"github.com/vocabstream/vocabstream/stage"
)

const (
	// DefaultTimeout is the default time.Duration allowed for a single download.
	DefaultTimeout = 10 * time.Minute

	sampleConfig = `origin: https://zenodo.org/api/records/latest/files/ror-data.zip/content
# skip the download when the remote file was not modified after since
since: "2024-05-01"
query:
  token: ${ZENODO_TOKEN}
timeout: 10m
`

	description = "downloads a remote file, skipped when it was not modified since a given time"
)

var (
	_ reader.Reader = &HTTP{}

	sinceLayouts = []string{
		time.RFC3339,
		"2006-01-02 15:04:05.999999-07:00",
		"2006-01-02 15:04:05.999999",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
)

// FetchError wraps a failed download.
type FetchError struct {
	URL string
	Err error
}

func (e FetchError) Error() string {
	return fmt.Sprintf("unable to fetch %s, %s", e.URL, e.Err)
}

func (e FetchError) Unwrap() error { return e.Err }

// HTTP implements the reader.Reader interface for remote files.
type HTTP struct {
	Origin  string            `json:"origin" validate:"omitempty,url"`
	Query   map[string]string `json:"query"`
	Since   string            `json:"since"`
	Timeout string            `json:"timeout"`

	since   time.Time
	timeout time.Duration
}

func init() {
	reader.Add("http", func() reader.Reader {
		return &HTTP{}
	})
}

// Description for http reader
func (h *HTTP) Description() string {
	return description
}

// SampleConfig for http reader
func (h *HTTP) SampleConfig() string {
	return sampleConfig
}

// Validate parses since and timeout.
func (h *HTTP) Validate() error {
	h.timeout = DefaultTimeout
	if h.Timeout != "" {
		d, err := time.ParseDuration(h.Timeout)
		if err != nil {
			return err
		}
		h.timeout = d
	}
	if h.Since == "" || h.Since == "None" {
		return nil
	}
	for _, layout := range sinceLayouts {
		if t, err := time.Parse(layout, h.Since); err == nil {
			h.since = t
			return nil
		}
	}
	return fmt.Errorf("unable to parse since %q", h.Since)
}

// Read satisfies the reader.Reader interface. An unreachable origin is fatal.
func (h *HTTP) Read(ctx context.Context, upstream reader.Iterator) (reader.Iterator, error) {
	if upstream != nil {
		return reader.Expand("http", upstream, func(ctx context.Context, e *message.Entry) (reader.Iterator, error) {
			src, ok := e.Data.(string)
			if !ok {
				return nil, reader.UnsupportedDataError{ID: e.ID, Data: e.Data}
			}
			return h.fetch(ctx, src)
		}), nil
	}
	if h.Origin == "" {
		return nil, stage.Fatal(reader.ErrNoSource)
	}
	it, err := h.fetch(ctx, h.Origin)
	if err != nil {
		return nil, stage.Fatal(err)
	}
	return it, nil
}

func (h *HTTP) fetch(ctx context.Context, src string) (reader.Iterator, error) {
	u, err := h.url(src)
	if err != nil {
		return nil, err
	}
	logger := log.With("reader", "http").With("url", src)
	client := &http.Client{Timeout: h.timeout}

	if !h.since.IsZero() {
		modified, err := lastModified(ctx, client, u)
		if err != nil {
			return nil, FetchError{URL: src, Err: err}
		}
		if !modified.IsZero() && !modified.After(h.since) {
			logger.With("last_modified", modified).Infoln("no new data since", h.since)
			return reader.Slice(), nil
		}
	}

	dir, err := os.MkdirTemp("", "vocabstream-http-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)
	dst := filepath.Join(dir, "download")

	httpGetter := &getter.HttpGetter{Client: client}
	gc := &getter.Client{
		Ctx:  ctx,
		Src:  u,
		Dst:  dst,
		Mode: getter.ClientModeFile,
		Getters: map[string]getter.Getter{
			"http":  httpGetter,
			"https": httpGetter,
		},
		// entries are unpacked by the downstream readers
		Decompressors: map[string]getter.Decompressor{},
	}
	logger.Infoln("downloading")
	if err := gc.Get(); err != nil {
		return nil, FetchError{URL: src, Err: err}
	}
	b, err := os.ReadFile(dst)
	if err != nil {
		return nil, err
	}
	logger.Infof("downloaded %d bytes", len(b))
	return reader.Slice(message.New(src, b)), nil
}

func (h *HTTP) url(src string) (string, error) {
	u, err := url.Parse(src)
	if err != nil {
		return "", err
	}
	if len(h.Query) > 0 {
		q := u.Query()
		for k, v := range h.Query {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// lastModified issues a HEAD request and returns the Last-Modified time, or
// the zero time when the server does not send one.
func lastModified(ctx context.Context, client *http.Client, u string) (time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u, nil)
	if err != nil {
		return time.Time{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return time.Time{}, err
	}
	resp.Body.Close()
	if resp.StatusCode >= 400 {
		return time.Time{}, fmt.Errorf("HEAD returned %s", resp.Status)
	}
	lm := resp.Header.Get("Last-Modified")
	if lm == "" {
		return time.Time{}, nil
	}
	return http.ParseTime(lm)
}
