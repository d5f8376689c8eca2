// Package download implements streamed HTTP fetches with SHA-256
// verification, the pattern google-slothfs/gitiles.Service.stream uses for
// Gitiles blobs, generalized to write straight to a destination file while
// hashing as it goes.
package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// ErrChecksumMismatch is returned when a download's content does not match
// the expected SHA-256 digest.
var ErrChecksumMismatch = errors.New("download: sha256 checksum mismatch")

// ProgressFunc is invoked with the cumulative number of bytes written so
// far. It may be called frequently; implementations should be cheap.
type ProgressFunc func(written int64)

// defaultBytesPerSecond bounds firmware download throughput the way
// fwmanifest.Client bounds directory-manifest fetches, so a large
// firmware artifact can't starve the RPC link a concurrent sync session
// is using. 4 MiB/s with an 8 MiB burst comfortably covers a USB-CDC
// serial session running alongside it.
const defaultBytesPerSecond = 4 << 20

// Client streams HTTP downloads to disk, verifying an expected SHA-256
// digest when one is supplied, throttled to limiter's rate.
type Client struct {
	HTTP    *http.Client
	limiter *rate.Limiter
}

// NewClient returns a Client using http.DefaultClient, rate-limited to
// defaultBytesPerSecond.
func NewClient() *Client {
	return &Client{
		HTTP:    http.DefaultClient,
		limiter: rate.NewLimiter(rate.Limit(defaultBytesPerSecond), defaultBytesPerSecond*2),
	}
}

// ToFile streams url's body to dest, optionally verifying it against
// expectedSHA256 (a lowercase hex digest; empty skips verification). progress,
// if non-nil, is called after each chunk write with the cumulative byte
// count, mirroring the original's per-chunk progress item updates.
//
// On checksum mismatch the partially written file is removed and
// ErrChecksumMismatch is returned (spec.md §7: "Firmware SHA-256 mismatch:
// Fatal; artifact discarded").
func (c *Client) ToFile(url, expectedSHA256, dest string, progress ProgressFunc) error {
	resp, err := c.HTTP.Get(url)
	if err != nil {
		return errors.Wrapf(err, "GET %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("GET %s: status %s", url, resp.Status)
	}

	out, err := os.Create(dest)
	if err != nil {
		return errors.Wrapf(err, "create %s", dest)
	}

	hasher := sha256.New()
	written, err := copyWithProgress(c.limiter, out, io.TeeReader(resp.Body, hasher), progress)
	closeErr := out.Close()
	if err != nil {
		os.Remove(dest)
		return errors.Wrapf(err, "download %s", url)
	}
	if closeErr != nil {
		os.Remove(dest)
		return errors.Wrapf(closeErr, "close %s", dest)
	}
	_ = written

	if expectedSHA256 != "" {
		actual := hex.EncodeToString(hasher.Sum(nil))
		if actual != expectedSHA256 {
			os.Remove(dest)
			return errors.Wrapf(ErrChecksumMismatch, "%s: want %s, got %s", url, expectedSHA256, actual)
		}
	}

	return nil
}

const chunkSize = 64 * 1024

func copyWithProgress(limiter *rate.Limiter, dst io.Writer, src io.Reader, progress ProgressFunc) (int64, error) {
	buf := make([]byte, chunkSize)
	var total int64
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if limiter != nil {
				if err := limiter.WaitN(context.Background(), n); err != nil {
					return total, err
				}
			}
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return total, werr
			}
			total += int64(n)
			if progress != nil {
				progress(total)
			}
		}
		if readErr == io.EOF {
			return total, nil
		}
		if readErr != nil {
			return total, readErr
		}
	}
}
