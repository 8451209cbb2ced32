// Package media re-hosts remote images locally so shadow copies do
// not depend on the origin site's continued availability.
package media

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/openlistings/leadsync/pkg/ports"
)

const (
	requestTimeout = 30 * time.Second
	maxImageBytes  = 20 << 20 // 20 MiB
)

type Sideloader struct {
	dir     string
	baseURL string
	http    *http.Client
}

func NewSideloader(dir, baseURL string) (*Sideloader, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Sideloader{
		dir:     dir,
		baseURL: baseURL,
		http:    &http.Client{Timeout: requestTimeout},
	}, nil
}

// Sideload downloads the remote image into the media dir and returns
// its local URL. The filename is derived from the source URL, so
// re-receiving the same push overwrites rather than accumulates.
func (s *Sideloader) Sideload(ctx context.Context, remoteURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remoteURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("image fetch returned %s", resp.Status)
	}

	name := localName(remoteURL)
	dst := filepath.Join(s.dir, name)

	f, err := os.CreateTemp(s.dir, "sideload-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(f.Name())

	if _, err := io.Copy(f, io.LimitReader(resp.Body, maxImageBytes)); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(f.Name(), dst); err != nil {
		return "", err
	}

	return s.baseURL + "/media/" + name, nil
}

func localName(remoteURL string) string {
	sum := sha256.Sum256([]byte(remoteURL))
	ext := path.Ext(remoteURL)
	if len(ext) > 5 || ext == "" {
		ext = ".img"
	}
	return fmt.Sprintf("%x%s", sum[:8], ext)
}

var _ ports.Sideloader = (*Sideloader)(nil)
