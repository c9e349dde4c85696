package crawler

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// ParseBaseURL validates the portal's record root and ensures a trailing
// slash so record ids resolve beneath it.
func ParseBaseURL(raw string) (*url.URL, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errors.New("base url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", raw)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	u.Fragment = ""
	return u, nil
}

// RecordURL returns the page address of the record with id.
func RecordURL(base *url.URL, id string) string {
	return base.ResolveReference(&url.URL{Path: id}).String()
}

// RecordIDFromURL returns the last path segment of a record page address.
func RecordIDFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	id := path.Base(strings.TrimRight(u.Path, "/"))
	if id == "." || id == "/" {
		return ""
	}
	return id
}
