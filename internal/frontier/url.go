package frontier

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/AaksharGarg/autorfp-crawler/internal/rfp"
)

// canonicalURL validates and standardizes a URL before dedup. It lowercases
// the scheme and host, removes default ports and fragments, and sorts query
// parameters so trivially different spellings dedupe to one frontier entry.
func canonicalURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", rfp.ErrInvalidURL, rawURL, err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: %q: unsupported scheme", rfp.ErrInvalidURL, rawURL)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: %q: missing host", rfp.ErrInvalidURL, rawURL)
	}

	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""
	u.RawQuery = u.Query().Encode()

	return u.String(), nil
}
