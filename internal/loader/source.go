package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Source serves documents by slash-separated relative path.
type Source interface {
	// Fetch returns the document body, or an error wrapping ErrNotFound.
	Fetch(ctx context.Context, path string) ([]byte, error)

	// Exists reports whether a document is present.
	Exists(ctx context.Context, path string) (bool, error)
}

// HTTPClient abstracts the HTTP client for testability. *http.Client
// satisfies it.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPSource reads documents relative to a base URL.
type HTTPSource struct {
	base   *url.URL
	client HTTPClient
}

// NewHTTPSource creates a source for base. A nil client means
// http.DefaultClient.
func NewHTTPSource(base string, client HTTPClient) (*HTTPSource, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", base)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{base: u, client: client}, nil
}

// URL resolves a relative document path.
func (s *HTTPSource) URL(p string) string {
	return s.base.ResolveReference(&url.URL{Path: strings.TrimPrefix(p, "/")}).String()
}

func (s *HTTPSource) do(ctx context.Context, method, p string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.URL(p), nil)
	if err != nil {
		return nil, &TransportError{Op: method, Path: p, Err: err}
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &TransportError{Op: method, Path: p, Err: err}
	}
	return resp, nil
}

// Fetch GETs a document. 404 maps to ErrNotFound; any other non-2xx status is
// a TransportError.
func (s *HTTPSource) Fetch(ctx context.Context, p string) ([]byte, error) {
	resp, err := s.do(ctx, http.MethodGet, p)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := statusError(http.MethodGet, p, resp.StatusCode); err != nil {
		return nil, err
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: http.MethodGet, Path: p, Err: err}
	}
	return body, nil
}

// Exists sends HEAD for a document.
func (s *HTTPSource) Exists(ctx context.Context, p string) (bool, error) {
	resp, err := s.do(ctx, http.MethodHead, p)
	if err != nil {
		return false, err
	}
	resp.Body.Close()

	if err := statusError(http.MethodHead, p, resp.StatusCode); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func statusError(op, p string, code int) error {
	switch {
	case code == http.StatusNotFound:
		return fmt.Errorf("%s: %w", p, ErrNotFound)
	case code < 200 || code > 299:
		return &TransportError{Op: op, Path: p, StatusCode: code}
	}
	return nil
}

// DirSource reads documents from a local directory.
type DirSource struct {
	root string
}

// NewDirSource creates a source rooted at dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{root: dir}
}

// Root returns the directory.
func (s *DirSource) Root() string {
	return s.root
}

// Path maps a relative document path into the directory.
func (s *DirSource) Path(p string) string {
	return filepath.Join(s.root, filepath.FromSlash(path.Clean("/" + p)))
}

// Fetch reads a file. Missing files map to ErrNotFound.
func (s *DirSource) Fetch(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path(p))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	if err != nil {
		return nil, &TransportError{Op: "read", Path: p, Err: err}
	}
	return data, nil
}

// Exists stats a file.
func (s *DirSource) Exists(ctx context.Context, p string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	info, err := os.Stat(s.Path(p))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, &TransportError{Op: "stat", Path: p, Err: err}
	}
	return !info.IsDir(), nil
}

// NewSource picks HTTPSource for http(s) URLs and DirSource otherwise.
func NewSource(location string, client HTTPClient) (Source, error) {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		src, err := NewHTTPSource(location, client)
		if err != nil {
			return nil, err
		}
		return src, nil
	}
	return NewDirSource(location), nil
}
