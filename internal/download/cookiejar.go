package download

import (
	"bufio"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// parseCookieJarFile parses a cURL/Mozilla/Netscape cookie jar text file,
// the format curl -c writes and -b reads.
func parseCookieJarFile(r io.Reader) ([]*http.Cookie, error) {
	var result []*http.Cookie
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()

		httpOnly := false
		const httpOnlyPrefix = "#HttpOnly_"
		if strings.HasPrefix(line, httpOnlyPrefix) {
			line = line[len(httpOnlyPrefix):]
			httpOnly = true
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) != 7 {
			return nil, errors.Errorf("cookie jar: got %d fields in line %q, want 7", len(fields), line)
		}
		expires, err := strconv.ParseInt(fields[4], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "cookie jar: parse expiry in line %q", line)
		}

		result = append(result, &http.Cookie{
			Domain:   fields[0],
			Path:     fields[2],
			Secure:   fields[3] == "TRUE",
			Expires:  time.Unix(expires, 0),
			Name:     fields[5],
			Value:    fields[6],
			HttpOnly: httpOnly,
		})
	}
	return result, scanner.Err()
}

// NewClientWithCookieJar returns a Client whose requests carry the cookies
// in the curl-format jar file at path, for firmware mirrors that gate
// downloads behind a login. The published official/momentum/unleashed
// directories don't need this, but a private or staging mirror passed as
// a Custom firmware URL plausibly would.
func NewClientWithCookieJar(path string) (*Client, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open cookie jar %s", path)
	}
	defer f.Close()

	cookies, err := parseCookieJarFile(f)
	if err != nil {
		return nil, err
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	byDomain := map[string][]*http.Cookie{}
	for _, c := range cookies {
		byDomain[c.Domain] = append(byDomain[c.Domain], c)
	}
	for domain, cs := range byDomain {
		jar.SetCookies(&url.URL{Scheme: "https", Host: domain}, cs)
	}

	return &Client{
		HTTP:    &http.Client{Jar: jar},
		limiter: rate.NewLimiter(rate.Limit(defaultBytesPerSecond), defaultBytesPerSecond*2),
	}, nil
}
