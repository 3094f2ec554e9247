// Package download fetches JRDB member data files over HTTP Basic Auth.
//
// Files are addressed by name, e.g. "SED220110.zip", and mapped to the member
// area layout by FilePath. Listing pages can also be scraped for every link
// with a given extension. Archives are saved as-is; extraction is out of scope.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is the JRDB site root.
const DefaultBaseURL = "http://www.jrdb.com/"

// Config configures a Client. Credentials are passed in explicitly; the
// client never reads the environment.
type Config struct {
	BaseURL           string
	Username          string
	Password          string
	RequestsPerSecond float64 // <= 0 disables throttling
	Timeout           time.Duration
}

// StatusError is returned for any response other than 200 OK.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	if e.StatusCode == http.StatusUnauthorized {
		return fmt.Sprintf("GET %s: %s", e.URL, e.Status)
	}
	return fmt.Sprintf("GET %s: unexpected status %s", e.URL, e.Status)
}

// Client downloads files from the JRDB member area.
type Client struct {
	baseURL  *url.URL
	username string
	password string
	http     *http.Client
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// New creates a client. logger may be nil.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	raw := cfg.BaseURL
	if raw == "" {
		raw = DefaultBaseURL
	}
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, errors.New("jrdb username and password are required")
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Client{
		baseURL:  base,
		username: cfg.Username,
		password: cfg.Password,
		http:     &http.Client{Timeout: cfg.Timeout},
		limiter:  limiter,
		logger:   logger,
	}, nil
}

var (
	categoryPattern   = regexp.MustCompile(`[A-Z]{3}`)
	singleFilePattern = regexp.MustCompile(`[A-Z]{3}(\d{6})\.zip$`)
)

// FilePath maps a file name to its path below the site root.
//
//	SED220110.zip -> member/datazip/Sed/2022/SED220110.zip
//	SED_2021.zip  -> member/datazip/Sed/SED_2021.zip
//	SED990110.zip -> member/datazip/Sed/1999/SED990110.zip
//	KYI220110.lzh -> member/data/Kyi/KYI220110.lzh
func FilePath(name string) (string, error) {
	var area string
	switch strings.ToLower(path.Ext(name)) {
	case ".zip":
		area = "member/datazip/"
	case ".lzh":
		area = "member/data/"
	default:
		return "", fmt.Errorf("unsupported file type %q", name)
	}

	category := categoryPattern.FindString(name)
	if category == "" {
		return "", fmt.Errorf("no record type in file name %q", name)
	}
	category = category[:1] + strings.ToLower(category[1:])

	// Single-day files live under a year directory; year packs do not.
	file := name
	if m := singleFilePattern.FindStringSubmatch(name); m != nil {
		short := m[1][:2]
		year := "20" + short
		if short == "99" {
			year = "19" + short
		}
		file = year + "/" + name
	}

	return area + category + "/" + file, nil
}

// FileURL returns the absolute URL of a file.
func (c *Client) FileURL(name string) (string, error) {
	p, err := FilePath(name)
	if err != nil {
		return "", err
	}
	return c.baseURL.ResolveReference(&url.URL{Path: p}).String(), nil
}

// get issues an authenticated GET. The caller closes the body.
func (c *Client) get(ctx context.Context, rawURL string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", rawURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode, Status: resp.Status}
	}
	return resp, nil
}

// Fetch downloads a file by name into memory.
func (c *Client) Fetch(ctx context.Context, name string) ([]byte, error) {
	u, err := c.FileURL(name)
	if err != nil {
		return nil, err
	}

	resp, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", u, err)
	}
	c.logger.Debug("file fetched", "file", name, "bytes", len(data))
	return data, nil
}

// Download saves a file by name into dir and returns its path.
func (c *Client) Download(ctx context.Context, name, dir string) (string, error) {
	u, err := c.FileURL(name)
	if err != nil {
		return "", err
	}
	return c.save(ctx, u, filepath.Join(dir, path.Base(name)))
}

// DownloadAll saves every link on pageURL ending in ext into dir and returns
// the saved paths. Files already present in dir are not fetched again.
func (c *Client) DownloadAll(ctx context.Context, pageURL, ext, dir string) ([]string, error) {
	links, err := c.ListLinks(ctx, pageURL, ext)
	if err != nil {
		return nil, err
	}

	var saved []string
	for _, link := range links {
		u, err := url.Parse(link)
		if err != nil {
			return saved, fmt.Errorf("parse link %s: %w", link, err)
		}
		dest := filepath.Join(dir, path.Base(u.Path))

		if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
			c.logger.Debug("already downloaded, skipping", "file", dest)
			continue
		}

		p, err := c.save(ctx, link, dest)
		if err != nil {
			return saved, err
		}
		saved = append(saved, p)
	}
	return saved, nil
}

// save streams rawURL to dest through a temp file in the same directory.
func (c *Client) save(ctx context.Context, rawURL, dest string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}

	resp, err := c.get(ctx, rawURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*.part")
	if err != nil {
		return "", fmt.Errorf("create %s: %w", dest, err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("download %s: %w", rawURL, err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", fmt.Errorf("save %s: %w", dest, err)
	}

	c.logger.Info("file downloaded", "url", rawURL, "file", dest, "bytes", n)
	return dest, nil
}
