package fetch

import (
	"net/http"

	"github.com/use-agent/qrawl/models"
)

// User-Agent strings per profile. Versions track current stable
// releases of each platform's default browser.
func userAgentFor(p Profile) string {
	switch p {
	case Minimal:
		// Bare but still identifies as a browser.
		return "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"
	case Windows:
		return "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	case MacOS:
		return "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15"
	case IOS:
		return "Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1"
	case Android:
		return "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Mobile Safari/537.36"
	}
	return "Mozilla/5.0"
}

const chromeAccept = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7"
const safariAccept = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"

// headerSetFor returns the ordered header set for a profile, without
// the User-Agent. Chrome profiles carry the sec-ch-ua suite; Safari
// does not send client hints.
func headerSetFor(p Profile) *models.HeaderSet {
	h := models.NewHeaderSet()
	switch p {
	case Minimal:
		// Bare minimum, just like curl.
		h.With("Accept", "*/*").
			With("Accept-Encoding", "gzip, deflate")
	case Windows:
		h.With("Accept", chromeAccept).
			With("Accept-Language", "en-US,en;q=0.9").
			With("Accept-Encoding", "gzip, deflate, br, zstd").
			With("Connection", "keep-alive").
			With("Upgrade-Insecure-Requests", "1").
			With("Sec-Fetch-Dest", "document").
			With("Sec-Fetch-Mode", "navigate").
			With("Sec-Fetch-Site", "none").
			With("Sec-Ch-Ua", `"Google Chrome";v="131", "Chromium";v="131", "Not_A Brand";v="24"`).
			With("Sec-Ch-Ua-Mobile", "?0").
			With("Sec-Ch-Ua-Platform", `"Windows"`)
	case MacOS:
		h.With("Accept", safariAccept).
			With("Accept-Language", "en-US,en;q=0.9").
			With("Accept-Encoding", "gzip, deflate, br").
			With("Connection", "keep-alive").
			With("Upgrade-Insecure-Requests", "1").
			With("Sec-Fetch-Dest", "document").
			With("Sec-Fetch-Mode", "navigate").
			With("Sec-Fetch-Site", "none")
	case IOS:
		h.With("Accept", safariAccept).
			With("Accept-Language", "en-US,en;q=0.9").
			With("Accept-Encoding", "gzip, deflate, br").
			With("Connection", "keep-alive").
			With("Upgrade-Insecure-Requests", "1").
			With("Sec-Fetch-Dest", "document").
			With("Sec-Fetch-Mode", "navigate").
			With("Sec-Fetch-Site", "none")
	case Android:
		h.With("Accept", chromeAccept).
			With("Accept-Language", "en-US,en;q=0.9").
			With("Accept-Encoding", "gzip, deflate, br, zstd").
			With("Connection", "keep-alive").
			With("Upgrade-Insecure-Requests", "1").
			With("Sec-Fetch-Dest", "document").
			With("Sec-Fetch-Mode", "navigate").
			With("Sec-Fetch-Site", "none").
			With("Sec-Fetch-User", "?1").
			With("Sec-Ch-Ua", `"Google Chrome";v="131", "Chromium";v="131", "Not_A Brand";v="24"`).
			With("Sec-Ch-Ua-Mobile", "?1").
			With("Sec-Ch-Ua-Platform", `"Android"`)
	}
	return h
}

// headersFor assembles the complete header map for a profile, including
// the User-Agent and an optional Referer used on retries.
func headersFor(p Profile, referer string) http.Header {
	out := make(http.Header)
	headerSetFor(p).Each(func(name, value string) {
		out.Set(name, value)
	})
	out.Set("User-Agent", userAgentFor(p))
	if referer != "" {
		out.Set("Referer", referer)
	}
	return out
}
