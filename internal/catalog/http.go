package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/melih-ucgun/integra/internal/core"
	"github.com/melih-ucgun/integra/internal/credentials"
)

// IndexFile is the catalog index served by the file server.
const IndexFile = "index.json"

// HTTP is a catalog served by a file server: an index.json listing every
// package next to the files themselves, behind basic auth.
type HTTP struct {
	BaseURL     string
	Username    string
	Secrets     credentials.Store
	DownloadDir string
	Client      *http.Client
}

// NewHTTP creates an HTTP catalog.
func NewHTTP(baseURL, username string, secrets credentials.Store, downloadDir string) *HTTP {
	return &HTTP{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		Username:    username,
		Secrets:     secrets,
		DownloadDir: downloadDir,
		Client:      http.DefaultClient,
	}
}

func (h *HTTP) Search(ctx context.Context, dev core.Device, mask string) ([]Descriptor, error) {
	resp, err := h.get(ctx, h.BaseURL+"/"+IndexFile)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var index []Descriptor
	if err := json.NewDecoder(resp.Body).Decode(&index); err != nil {
		return nil, fmt.Errorf("failed to parse catalog index: %w", err)
	}

	var out []Descriptor
	for _, d := range index {
		if strings.HasSuffix(d.Name, mask) && matchEdition(d, dev.Edition) {
			out = append(out, d)
		}
	}
	Rank(out)
	return out, nil
}

func (h *HTTP) Fetch(ctx context.Context, d Descriptor) (string, error) {
	if d.Name == "" || filepath.Base(d.Name) != d.Name {
		return "", fmt.Errorf("%w: invalid package name %q", core.ErrTransfer, d.Name)
	}
	src, err := h.resolve(d)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(h.DownloadDir, 0755); err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrTransfer, err)
	}

	resp, err := h.get(ctx, src)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	// Temp file + rename so a concurrent reader never sees a partial package.
	tmp, err := os.CreateTemp(h.DownloadDir, "."+d.Name+".*")
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrTransfer, err)
	}
	defer os.Remove(tmp.Name())

	hasher := sha256.New()
	if _, err := io.Copy(tmp, io.TeeReader(resp.Body, hasher)); err != nil {
		tmp.Close()
		return "", fmt.Errorf("%w: download %s: %v", core.ErrTransfer, d.Name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrTransfer, err)
	}

	if want := strings.TrimPrefix(d.SHA256, "sha256:"); want != "" {
		if got := hex.EncodeToString(hasher.Sum(nil)); !strings.EqualFold(got, want) {
			return "", fmt.Errorf("%w: checksum mismatch for %s: expected %s, got %s", core.ErrTransfer, d.Name, want, got)
		}
	}

	dest := filepath.Join(h.DownloadDir, d.Name)
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrTransfer, err)
	}
	return filepath.Abs(dest)
}

func (h *HTTP) resolve(d Descriptor) (string, error) {
	ref := d.URL
	if ref == "" {
		ref = d.Name
	}
	base, err := url.Parse(h.BaseURL + "/")
	if err != nil {
		return "", fmt.Errorf("%w: invalid fileserver url: %v", core.ErrConfiguration, err)
	}
	u, err := base.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("%w: invalid package url %q: %v", core.ErrTransfer, ref, err)
	}
	return u.String(), nil
}

func (h *HTTP) get(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	if h.Secrets != nil && h.Username != "" {
		secret, err := h.Secrets.Secret(h.Username)
		switch {
		case err == nil:
			req.SetBasicAuth(h.Username, secret)
		case !errors.Is(err, core.ErrSecretNotFound):
			return nil, err
		}
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrTransfer, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: GET %s: %s", core.ErrTransfer, target, resp.Status)
	}
	return resp, nil
}
