// Package hub downloads dataset files from the Hugging Face hub, with a
// local cache so repeated runs don't refetch.
package hub

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// DefaultBaseURL is the datasets resolve endpoint of the Hugging Face hub.
const DefaultBaseURL = "https://huggingface.co/datasets"

// Client fetches dataset files into a cache directory.
type Client struct {
	// BaseURL of the datasets endpoint. Defaults to DefaultBaseURL.
	BaseURL string
	// Token, if non-empty, is sent as a bearer credential for gated
	// datasets.
	Token string
	// CacheDir is where downloaded files land.
	CacheDir string

	httpClient *http.Client
}

// NewClient returns a hub client writing into cacheDir.
func NewClient(token, cacheDir string) *Client {
	return &Client{BaseURL: DefaultBaseURL, Token: token, CacheDir: cacheDir, httpClient: &http.Client{}}
}

// DownloadDataset fetches a file of a hub dataset repository and returns its
// local path. An already-cached file is returned as is.
func (c *Client) DownloadDataset(dataset, filename string) (string, error) {
	local := filepath.Join(c.CacheDir, strings.ReplaceAll(dataset, "/", "_"), filename)
	if _, err := os.Stat(local); err == nil {
		logrus.WithField("path", local).Debug("Dataset already cached")
		return local, nil
	}

	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return "", fmt.Errorf("failed to create cache directory: %w", err)
	}

	url := fmt.Sprintf("%s/%s/resolve/main/%s", c.BaseURL, dataset, filename)
	request, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create download request: %w", err)
	}
	if c.Token != "" {
		request.Header.Set("Authorization", "Bearer "+c.Token)
	}

	logrus.WithField("url", url).Info("Downloading dataset")
	response, err := c.httpClient.Do(request)
	if err != nil {
		return "", fmt.Errorf("failed to download dataset: %w", err)
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code %d downloading %s", response.StatusCode, url)
	}

	// Write through a temp file so a partial download never looks cached.
	tmp, err := os.CreateTemp(filepath.Dir(local), filename+".tmp*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, response.Body); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("failed to write dataset file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close dataset file: %w", err)
	}
	if err := os.Rename(tmp.Name(), local); err != nil {
		return "", fmt.Errorf("failed to move dataset file in place: %w", err)
	}

	return local, nil
}
