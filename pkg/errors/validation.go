package errors

import (
	"net/url"
	"strings"
	"unicode"
)

const (
	maxSelectorLen = 512
	maxHTMLBytes   = 4 << 20
)

// ValidateSelector validates the CSS selector naming the receipt node.
//
// The rules are intentionally conservative:
//   - No empty selectors
//   - No control characters
//   - Maximum length of 512 characters
func ValidateSelector(selector string) error {
	if strings.TrimSpace(selector) == "" {
		return New(ErrCodeInvalidInput, "selector cannot be empty")
	}
	if len(selector) > maxSelectorLen {
		return New(ErrCodeInvalidInput, "selector too long (max %d characters)", maxSelectorLen)
	}
	for _, r := range selector {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "selector contains invalid control characters")
		}
	}
	return nil
}

// ValidatePageURL validates the URL of a page loaded on the local user's
// behalf. Only absolute http, https and file URLs are accepted.
func ValidatePageURL(raw string) error {
	return validatePageURL(raw, true)
}

// ValidateRemotePageURL validates a page URL supplied by a network client.
// Only absolute http and https URLs are accepted; file URLs would expose the
// server's filesystem.
func ValidateRemotePageURL(raw string) error {
	return validatePageURL(raw, false)
}

func validatePageURL(raw string, allowFile bool) error {
	if raw == "" {
		return New(ErrCodeInvalidInput, "page url cannot be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Wrap(ErrCodeInvalidInput, err, "page url is not a valid URL")
	}
	switch u.Scheme {
	case "http", "https":
		if u.Host == "" {
			return New(ErrCodeInvalidInput, "page url must include a host")
		}
	case "file":
		if !allowFile {
			return New(ErrCodeInvalidInput, "page url scheme \"file\" not allowed (must be http or https)")
		}
	default:
		if !allowFile {
			return New(ErrCodeInvalidInput, "page url scheme %q not allowed (must be http or https)", u.Scheme)
		}
		return New(ErrCodeInvalidInput, "page url scheme %q not allowed (must be http, https or file)", u.Scheme)
	}
	return nil
}

// ValidateHTML validates an inline HTML document holding the receipt.
func ValidateHTML(doc string) error {
	if strings.TrimSpace(doc) == "" {
		return New(ErrCodeInvalidInput, "html document cannot be empty")
	}
	if len(doc) > maxHTMLBytes {
		return New(ErrCodeInvalidInput, "html document too large (max %d bytes)", maxHTMLBytes)
	}
	if strings.ContainsRune(doc, '\x00') {
		return New(ErrCodeInvalidInput, "html document contains null bytes")
	}
	return nil
}
