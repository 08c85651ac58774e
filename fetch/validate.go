package fetch

import (
	"fmt"
	"strings"
)

const minBodyLen = 500

var unauthorizedPatterns = []string{
	"access denied",
	"permission denied",
	"forbidden",
	"unauthorized",
}

var suspiciousPatterns = []string{
	"verify you are a human",
	"please complete the captcha",
	"solve this captcha",
	"captcha challenge",
	"cf-browser-verification",
	"cf-captcha-container",
	"px-captcha",
	"blocked by cloudflare",
	"please enable javascript and cookies",
	"suspicious activity",
	"bot detection",
	"perimeterx",
}

// lowerCache lowercases a body at most once per validation.
type lowerCache struct {
	body  string
	lower string
	done  bool
}

func (c *lowerCache) get() string {
	if !c.done {
		c.lower = strings.ToLower(c.body)
		c.done = true
	}
	return c.lower
}

func invalidReason(body string, cache *lowerCache) string {
	if len(body) < minBodyLen {
		return "body is too short"
	}
	lower := cache.get()
	if !strings.Contains(lower, "<html") && !strings.Contains(lower, "<!doctype") {
		return "missing HTML markers"
	}
	return ""
}

func matchPattern(patterns []string, cache *lowerCache) string {
	lower := cache.get()
	for _, p := range patterns {
		if strings.Contains(lower, p) {
			return p
		}
	}
	return ""
}

func statusLabel(status int) string {
	switch status {
	case 429:
		return "rate limited"
	case 403:
		return "forbidden"
	case 404:
		return "not found"
	case 401:
		return "unauthorized"
	case 400:
		return "bad request"
	case 500:
		return "server error"
	}
	return "unknown error"
}

// Validate classifies an HTTP response as truly scrapable content.
//
// It rejects non-2xx statuses, bodies that are too short or not HTML,
// access-denied pages, and bot-challenge interstitials (Cloudflare,
// PerimeterX, captchas). Pages carrying JSON-LD structured data skip
// the access-denied and bot-challenge pattern checks: recipe and
// article pages often contain phrases like "forbidden" in unrelated
// page chrome while still being fully scrapable.
func Validate(status int, body string) error {
	if status < 200 || status >= 300 {
		return fmt.Errorf("status %d (%s)", status, statusLabel(status))
	}

	cache := &lowerCache{body: body}

	if strings.Contains(body, "application/ld+json") {
		if reason := invalidReason(body, cache); reason != "" {
			return fmt.Errorf("invalid - %s", reason)
		}
		return nil
	}

	if reason := invalidReason(body, cache); reason != "" {
		return fmt.Errorf("invalid - %s", reason)
	}
	if pattern := matchPattern(unauthorizedPatterns, cache); pattern != "" {
		return fmt.Errorf("unauthorized - %s", pattern)
	}
	if pattern := matchPattern(suspiciousPatterns, cache); pattern != "" {
		return fmt.Errorf("suspicious - %s", pattern)
	}
	return nil
}

// retriableWithReferer reports whether a validation failure is the kind
// a Referer header has a chance of unblocking.
func retriableWithReferer(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.HasPrefix(msg, "unauthorized - ") || strings.HasPrefix(msg, "suspicious - ")
}
