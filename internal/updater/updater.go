// Package updater runs CLEO's background release checker: a single-shot
// fetch of a release list, cached to disk with a TTL, feeding a one-shot
// update prompt (spec.md §4.7).
package updater

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/golang-jwt/jwt/v5"
)

// Status is the tri-state result spec.md §4.7 calls for.
type Status int

const (
	NotStarted Status = iota
	NotFinished
	Finished
)

// Release is one entry of the fetched release list.
type Release struct {
	Version string `json:"version"`
	Notes   string `json:"notes"`
}

// Result is what Finished carries: the release list and whichever entry,
// if any, is newer than the running version.
type Result struct {
	Releases []Release
	Newer    *Release
}

// Checker runs the background fetch and holds the tri-state result.
type Checker struct {
	endpoint      string
	cachePath     string
	ttl           time.Duration
	currentVersion *semver.Version
	signingKey    []byte
	logger        *slog.Logger
	httpClient    *http.Client

	status Status
	result Result
}

// NewChecker builds a Checker. signingKey authenticates the on-disk cache
// (a JWT wrapping the cached release list) against tampering between
// runs; it is supplied by the caller, never written to disk, and not a
// secret shared with the release endpoint.
func NewChecker(endpoint, cachePath string, ttl time.Duration, currentVersion string, signingKey []byte, logger *slog.Logger) (*Checker, error) {
	v, err := semver.NewVersion(currentVersion)
	if err != nil {
		return nil, fmt.Errorf("updater: parse current version %q: %w", currentVersion, err)
	}
	return &Checker{
		endpoint:       endpoint,
		cachePath:      cachePath,
		ttl:            ttl,
		currentVersion: v,
		signingKey:     signingKey,
		logger:         logger,
		httpClient:     &http.Client{Timeout: 10 * time.Second},
		status:         NotStarted,
	}, nil
}

// Status returns the checker's current tri-state status.
func (c *Checker) Status() Status { return c.status }

// Result returns the last fetched result; valid only once Status() ==
// Finished.
func (c *Checker) Result() Result { return c.result }

// cacheClaims is the JWT payload wrapping a cached release list.
type cacheClaims struct {
	jwt.RegisteredClaims
	Releases []Release `json:"releases"`
}

// Run performs one background fetch-or-load cycle. If channel is "none"
// the fetch is skipped entirely (spec.md §4.7 "If the user selected
// release-channel = none, the fetch is skipped"). Intended to be launched
// once in its own goroutine at startup.
func (c *Checker) Run(ctx context.Context, channelNone bool) {
	c.status = NotFinished
	if channelNone {
		c.status = NotStarted
		return
	}

	if releases, ok := c.loadCache(); ok {
		c.finish(releases)
		return
	}

	releases, err := c.fetch(ctx)
	if err != nil {
		c.logger.Warn("updater: fetch failed", "error", err)
		c.status = NotStarted
		return
	}

	if err := c.storeCache(releases); err != nil {
		c.logger.Warn("updater: cache write failed", "error", err)
	}

	c.finish(releases)
}

func (c *Checker) finish(releases []Release) {
	c.result = Result{Releases: releases, Newer: c.newestAbove(releases)}
	c.status = Finished
}

func (c *Checker) fetch(ctx context.Context) ([]Release, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("updater: unexpected status %d", resp.StatusCode)
	}

	var releases []Release
	if err := json.NewDecoder(resp.Body).Decode(&releases); err != nil {
		return nil, fmt.Errorf("updater: decode release list: %w", err)
	}
	return releases, nil
}

// loadCache loads the disk cache if it exists and its file mtime is within
// the TTL, verifying the wrapping JWT's signature. The token carries no
// expiry claim of its own.
func (c *Checker) loadCache() ([]Release, bool) {
	info, err := os.Stat(c.cachePath)
	if err != nil {
		return nil, false
	}
	if time.Since(info.ModTime()) > c.ttl {
		return nil, false
	}

	tokenBytes, err := os.ReadFile(c.cachePath)
	if err != nil {
		return nil, false
	}

	claims := &cacheClaims{}
	_, err = jwt.ParseWithClaims(string(tokenBytes), claims, func(t *jwt.Token) (any, error) {
		return c.signingKey, nil
	})
	if err != nil {
		c.logger.Warn("updater: cache signature invalid, refetching", "error", err)
		return nil, false
	}
	return claims.Releases, true
}

// storeCache writes the release list wrapped in a signed JWT, using the
// file's own mtime as the TTL anchor (spec.md §6 "Release cache... file
// mtime used as the TTL anchor").
func (c *Checker) storeCache(releases []Release) error {
	claims := cacheClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
		Releases: releases,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.signingKey)
	if err != nil {
		return fmt.Errorf("updater: sign cache: %w", err)
	}
	return os.WriteFile(c.cachePath, []byte(signed), 0o600)
}

// newestAbove returns the release strictly newer than the running version,
// per the (major, minor, patch) comparison with stable > alpha on ties
// (spec.md §4.7).
func (c *Checker) newestAbove(releases []Release) *Release {
	var best *Release
	var bestVersion *semver.Version

	for i := range releases {
		r := releases[i]
		v, err := semver.NewVersion(r.Version)
		if err != nil {
			c.logger.Warn("updater: skipping unparseable release version", "version", r.Version, "error", err)
			continue
		}
		if !isNewer(v, c.currentVersion) {
			continue
		}
		if bestVersion == nil || isNewer(v, bestVersion) {
			best = &r
			bestVersion = v
		}
	}
	return best
}

// isNewer reports whether a is strictly newer than b, by (major, minor,
// patch) tuple order with stable beating alpha on ties (spec.md §4.7).
func isNewer(a, b *semver.Version) bool {
	if a.Major() != b.Major() {
		return a.Major() > b.Major()
	}
	if a.Minor() != b.Minor() {
		return a.Minor() > b.Minor()
	}
	if a.Patch() != b.Patch() {
		return a.Patch() > b.Patch()
	}
	aStable := a.Prerelease() == ""
	bStable := b.Prerelease() == ""
	if aStable != bStable {
		return aStable
	}
	return false
}
