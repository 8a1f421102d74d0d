package utils

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeURI joins a server base URI and a path fragment, collapsing duplicate slashes
// at the seam. A fragment starting with "?" is appended as a query.
func NormalizeURI(base string, fragment string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse uri %q: %w", base, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("uri %q is not absolute", base)
	}

	if strings.HasPrefix(fragment, "?") {
		q, err := url.ParseQuery(fragment[1:])
		if err != nil {
			return "", fmt.Errorf("parse query %q: %w", fragment, err)
		}
		existing := u.Query()
		for k, vs := range q {
			for _, v := range vs {
				existing.Add(k, v)
			}
		}
		u.RawQuery = existing.Encode()
		return u.String(), nil
	}

	escapedPath := strings.TrimRight(u.EscapedPath(), "/")
	u.RawPath = ""
	full := escapedPath + "/" + strings.TrimLeft(fragment, "/")
	unescaped, err := url.PathUnescape(full)
	if err != nil {
		return "", fmt.Errorf("unescape path %q: %w", full, err)
	}
	u.Path = unescaped
	u.RawPath = full
	return u.String(), nil
}

// EscapePath escapes every segment of a slash separated relative path for use in a URL.
func EscapePath(relPath string) string {
	parts := strings.Split(NormPath(relPath), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// SameOrigin reports whether two absolute URLs share scheme host and port.
// Default ports are made explicit before comparing.
func SameOrigin(a string, b string) bool {
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	return strings.EqualFold(ua.Hostname(), ub.Hostname()) && effectivePort(ua) == effectivePort(ub)
}

func effectivePort(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	switch strings.ToLower(u.Scheme) {
	case "https":
		return "443"
	case "http":
		return "80"
	}
	return ""
}
