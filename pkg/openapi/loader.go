package openapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"time"
)

// ReadFS reads an OpenAPI document from fsys.
func ReadFS(ctx context.Context, fsys fs.FS, name string) ([]byte, error) {
	if fsys == nil {
		return nil, errors.New("openapi: filesystem is not configured")
	}
	if name == "" {
		return nil, errors.New("openapi: path is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("openapi: read %s: %w", name, err)
	}
	return data, nil
}

// Fetch downloads an OpenAPI document, typically the schema endpoint of the
// backend. A zero timeout leaves the deadline to ctx.
func Fetch(ctx context.Context, client *http.Client, url string, timeout time.Duration) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if url == "" {
		return nil, errors.New("openapi: url is required")
	}

	reqCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openapi: fetch %s: %w", url, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.New("openapi: unexpected status " + resp.Status)
	}
	return io.ReadAll(resp.Body)
}
