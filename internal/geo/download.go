package geo

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"
)

const (
	maxMindDownloadURL = "https://download.maxmind.com/app/geoip_download"
	downloadUserAgent  = "campaignready-geolite/1.0"

	EditionASN  = "GeoLite2-ASN"
	EditionCity = "GeoLite2-City"
)

var ErrNoLicenseKey = errors.New("geo: license key is not configured")

// Edition pairs a MaxMind edition with the path it is installed at.
type Edition struct {
	ID   string
	Path string
}

// Downloader fetches GeoLite editions. Concurrent calls share one download.
type Downloader struct {
	licenseKey string
	baseURL    string
	client     *http.Client
	group      singleflight.Group
}

func NewDownloader(licenseKey string) *Downloader {
	return &Downloader{
		licenseKey: strings.TrimSpace(licenseKey),
		baseURL:    maxMindDownloadURL,
		client:     &http.Client{Timeout: 2 * time.Minute},
	}
}

// EnsureEditions downloads every edition whose file is missing and reports
// how many were installed.
func (d *Downloader) EnsureEditions(ctx context.Context, editions ...Edition) (int, error) {
	var missing []Edition
	for _, e := range editions {
		if e.Path == "" {
			continue
		}
		if _, err := os.Stat(e.Path); errors.Is(err, os.ErrNotExist) {
			missing = append(missing, e)
		}
	}
	if len(missing) == 0 {
		return 0, nil
	}
	if d.licenseKey == "" {
		return 0, ErrNoLicenseKey
	}

	installed := 0
	for _, e := range missing {
		_, err, _ := d.group.Do(e.ID+"|"+e.Path, func() (any, error) {
			return nil, d.download(ctx, e)
		})
		if err != nil {
			return installed, err
		}
		installed++
		log.Info("GeoLite database installed", "edition", e.ID, "path", e.Path)
	}
	return installed, nil
}

func (d *Downloader) download(ctx context.Context, e Edition) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.editionURL(e.ID), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", downloadUserAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", e.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("download %s: unexpected status %d: %s", e.ID, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	gz, err := gzip.NewReader(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: open gzip: %w", e.ID, err)
	}
	defer gz.Close()

	want := e.ID + ".mmdb"
	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("%s: read tar: %w", e.ID, err)
		}
		if header.Typeflag != tar.TypeReg || filepath.Base(header.Name) != want {
			continue
		}
		if err := writeAtomically(e.Path, tr); err != nil {
			return fmt.Errorf("%s: write file: %w", e.ID, err)
		}
		return nil
	}

	return fmt.Errorf("%s: mmdb file not found in archive", e.ID)
}

func (d *Downloader) editionURL(edition string) string {
	q := url.Values{}
	q.Set("edition_id", edition)
	q.Set("license_key", d.licenseKey)
	q.Set("suffix", "tar.gz")
	return d.baseURL + "?" + q.Encode()
}

func writeAtomically(destPath string, data io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), "geolite-*.mmdb")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, data); err != nil {
		tmp.Close()
		return fmt.Errorf("copy data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	return os.Rename(tmp.Name(), destPath)
}
