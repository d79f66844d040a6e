// Package release resolves the latest GitHub release of a repository.
package release

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"fleet-installer/internal/cache"
	"fleet-installer/internal/download"
	"fleet-installer/internal/logger"
)

// GitHubRelease is the part of the releases API response we use.
type GitHubRelease struct {
	TagName string `json:"tag_name"`
	Assets  []struct {
		Name               string `json:"name"`
		BrowserDownloadURL string `json:"browser_download_url"`
	} `json:"assets"`
}

// Fetcher is the subset of download.Client used here.
type Fetcher interface {
	CachedFetch(ctx context.Context, store *cache.Store, key, url, userAgent string) (download.Response, error)
}

// GitHub looks up releases through the ETag cache so repeated runs cost a 304.
type GitHub struct {
	Fetcher Fetcher
	Cache   *cache.Store
	// APIBase and DownloadBase default to the public GitHub endpoints.
	APIBase      string
	DownloadBase string
}

// Latest describes the newest release of a repository.
type Latest struct {
	Tag string
	// Version is Tag without a leading "v".
	Version string
	// FromCache is true when GitHub answered 304.
	FromCache bool
}

func (g *GitHub) apiBase() string {
	if g.APIBase != "" {
		return strings.TrimRight(g.APIBase, "/")
	}
	return "https://api.github.com"
}

func (g *GitHub) downloadBase() string {
	if g.DownloadBase != "" {
		return strings.TrimRight(g.DownloadBase, "/")
	}
	return "https://github.com"
}

// LatestRelease returns the latest release of repo ("owner/name") and records
// its version under github.<owner>.<name>.ver in the cache.
func (g *GitHub) LatestRelease(ctx context.Context, repo string) (Latest, error) {
	if strings.Count(repo, "/") != 1 {
		return Latest{}, fmt.Errorf("invalid GitHub repository %q, want owner/name", repo)
	}
	url := fmt.Sprintf("%s/repos/%s/releases/latest", g.apiBase(), repo)
	logger.Debug("[DEBUG] Fetching GitHub release from URL: %s\n", url)

	key := cache.Key("github", repo)
	resp, err := g.Fetcher.CachedFetch(ctx, g.Cache, key, url, "")
	if err != nil {
		return Latest{}, fmt.Errorf("latest release of %s: %w", repo, err)
	}

	var rel GitHubRelease
	if err := json.Unmarshal(resp.Body, &rel); err != nil {
		return Latest{}, fmt.Errorf("failed to decode GitHub release JSON for %s: %w", repo, err)
	}
	if rel.TagName == "" {
		return Latest{}, fmt.Errorf("release of %s has no tag_name", repo)
	}

	l := Latest{Tag: rel.TagName, Version: strings.TrimPrefix(rel.TagName, "v"), FromCache: resp.Cached}
	if err := g.Cache.Write(key+".ver", l.Version); err != nil {
		logger.Warn("[WARN] %v\n", err)
	}
	logger.Debug("[DEBUG] Release tag for %s: %s (cached=%t)\n", repo, l.Tag, l.FromCache)
	return l, nil
}

// AssetURL is the public download URL of a release asset.
func (g *GitHub) AssetURL(repo, tag, file string) string {
	return fmt.Sprintf("%s/%s/releases/download/%s/%s", g.downloadBase(), repo, tag, file)
}
