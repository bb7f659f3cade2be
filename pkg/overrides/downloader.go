package overrides

import (
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// maxDownloadSize bounds remote override files.
const maxDownloadSize = 32 * 1024 * 1024

// EnsureOverrides checks if the override CSV exists at path.
// If not, it downloads it from url, transparently decompressing gzip.
// The download is validated with Load before it is moved into place.
func EnsureOverrides(ctx context.Context, path, url string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	if url == "" {
		return fmt.Errorf("overrides not found at %s and no download url configured", path)
	}

	logger.Info("overrides not found, downloading", zap.String("path", path), zap.String("url", url))
	return download(ctx, url, path)
}

func download(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "syllabler-cli")

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed: %s", resp.Status)
	}

	body, err := maybeGzip(io.LimitReader(resp.Body, maxDownloadSize))
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".overrides-download-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write to file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if _, err := LoadFile(tmp.Name()); err != nil {
		return fmt.Errorf("downloaded overrides are invalid: %w", err)
	}
	return os.Rename(tmp.Name(), destPath)
}

// maybeGzip sniffs the gzip magic number and wraps r in a decompressor when
// present.
func maybeGzip(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return gz, nil
	}
	return br, nil
}
