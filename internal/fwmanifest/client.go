package fwmanifest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// Target is the hardware target a firmware file was built for.
type Target string

const (
	TargetF7  Target = "f7"
	TargetF18 Target = "f18"
	TargetAny Target = "any"
)

// File is one downloadable artifact of a Version.
type File struct {
	URL      string `json:"url"`
	Target   Target `json:"target"`
	FileType string `json:"type"`
	SHA256   string `json:"sha256"`
}

// Version is one released firmware version within a Channel.
type Version struct {
	Version   string `json:"version"`
	Changelog string `json:"changelog"`
	Timestamp int64  `json:"timestamp"`
	Files     []File `json:"files"`
}

// latestTgz returns the first file of type "update_tgz" in v.
func (v Version) latestTgz() (File, error) {
	for _, f := range v.Files {
		if f.FileType == "update_tgz" {
			return f, nil
		}
	}
	return File{}, errors.Errorf("no update_tgz file in version %s", v.Version)
}

// directoryChannel is one entry of the directory.json "channels" array.
type directoryChannel struct {
	ID       Channel   `json:"id"`
	Title    string    `json:"title"`
	Versions []Version `json:"versions"`
}

// directory is the top-level shape of a published directory.json manifest.
type directory struct {
	Channels []directoryChannel `json:"channels"`
}

func (d directory) latestVersion(channel Channel) (Version, error) {
	for _, c := range d.Channels {
		if c.ID == channel {
			if len(c.Versions) == 0 {
				return Version{}, errors.Errorf("no versions available for channel %q", channel)
			}
			return c.Versions[0], nil
		}
	}
	return Version{}, errors.Errorf("no channel %q in directory manifest", channel)
}

// Client fetches firmware directory manifests over HTTP, rate-limited the
// way google-slothfs/gitiles.Service rate-limits Gitiles JSON requests.
type Client struct {
	HTTP    *http.Client
	limiter *rate.Limiter
}

// NewClient returns a Client with a conservative default rate limit: at
// most one directory fetch per second, allowing a small burst.
func NewClient() *Client {
	return &Client{
		HTTP:    http.DefaultClient,
		limiter: rate.NewLimiter(rate.Limit(1), 2),
	}
}

func (c *Client) fetchDirectory(url string) (directory, error) {
	if err := c.limiter.Wait(context.Background()); err != nil {
		return directory{}, err
	}

	resp, err := c.HTTP.Get(url)
	if err != nil {
		return directory{}, errors.Wrapf(err, "fetch %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return directory{}, errors.Errorf("fetch %s: status %s", url, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return directory{}, errors.Wrapf(err, "read %s", url)
	}

	var d directory
	if err := json.Unmarshal(body, &d); err != nil {
		return directory{}, errors.Wrapf(err, "decode %s", url)
	}
	return d, nil
}

// Artifact is the resolved downloadable firmware file plus its declared
// digest, ready for internal/download.
type Artifact struct {
	URL    string
	SHA256 string // empty when unknown (spec.md: "when applicable")
}

// Resolve fetches the directory manifest for a published Firmware and
// returns its latest update_tgz artifact. It is an error to call Resolve
// on a Custom firmware; callers should use f.Custom directly instead.
func (c *Client) Resolve(f Firmware) (Artifact, error) {
	if f.IsCustom() {
		return Artifact{}, errors.New("fwmanifest: Resolve called on a custom firmware")
	}

	base, ok := directoryURL[f.Source]
	if !ok {
		return Artifact{}, errors.Errorf("fwmanifest: unknown source %q", f.Source)
	}

	dir, err := c.fetchDirectory(base)
	if err != nil {
		return Artifact{}, err
	}

	version, err := dir.latestVersion(f.Channel)
	if err != nil {
		return Artifact{}, errors.Wrapf(err, "resolve %s", f)
	}

	file, err := version.latestTgz()
	if err != nil {
		return Artifact{}, errors.Wrapf(err, "resolve %s", f)
	}

	return Artifact{URL: file.URL, SHA256: file.SHA256}, nil
}
