package checksync

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/NordCoder/checksync/internal/domain/check"
	"github.com/NordCoder/checksync/internal/folder"
)

func validateName(name string, max int) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", check.Invalid("name", "must not be empty")
	}
	if utf8.RuneCountInString(name) > max {
		return "", check.Invalid("name", fmt.Sprintf("longer than %d characters", max))
	}
	return name, nil
}

// validateURL accepts absolute http(s) URLs of bounded length whose host is not denied.
// Duplicates across checks are allowed.
func validateURL(raw string, max int, denied []string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", check.Invalid("url", "must not be empty")
	}
	if len(raw) > max {
		return "", check.Invalid("url", fmt.Sprintf("longer than %d bytes", max))
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", check.Invalid("url", "malformed")
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", check.Invalid("url", "scheme must be http or https")
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", check.Invalid("url", "missing host")
	}
	for _, d := range denied {
		if host == strings.ToLower(strings.Trim(d, "[]")) {
			return "", check.Invalid("url", "host "+host+" is not allowed")
		}
	}
	u.Scheme = scheme
	u.Host = strings.ToLower(u.Host)
	return u.String(), nil
}

func validateFolder(raw string, lim folder.Limits) (string, error) {
	p := folder.Normalize(raw)
	if err := folder.Validate(p, lim); err != nil {
		return "", folderError(err)
	}
	return p, nil
}

func folderError(err error) error {
	return &check.ValidationError{Field: "folder", Reason: err.Error(), Err: err}
}
