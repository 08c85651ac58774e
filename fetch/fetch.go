package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/use-agent/qrawl/models"
)

// Result is the output of a successful fetch, with telemetry about the
// ladder walk: which profile produced the valid response, the wall
// clock from call start, and the 1-based index of the winning profile.
type Result struct {
	HTML        string  `json:"html"`
	ProfileUsed Profile `json:"profile_used"`
	DurationMs  uint64  `json:"duration_ms"`
	Attempts    int     `json:"attempts"`
}

// MarshalJSON renders profiles by name in telemetry output.
func (p Profile) MarshalJSON() ([]byte, error) {
	return []byte(`"` + p.String() + `"`), nil
}

func (p *Profile) UnmarshalJSON(data []byte) error {
	name := strings.Trim(string(data), `"`)
	for i := 0; i < numProfiles; i++ {
		if Profile(i).String() == name {
			*p = Profile(i)
			return nil
		}
	}
	return fmt.Errorf("fetch: unknown profile %q", name)
}

// Fetch retrieves a URL with the adaptive strategy: profiles are tried
// in strict order (Minimal → Windows → IOS) with a short jittered delay
// in between, and the first response that passes validation wins.
func Fetch(ctx context.Context, rawURL string) (*Result, error) {
	return fetchAdaptive(ctx, rawURL, nil)
}

// FetchWith retrieves a URL with an explicit strategy. Fast makes a
// single attempt with the Minimal profile.
func FetchWith(ctx context.Context, rawURL string, strategy models.FetchStrategy) (*Result, error) {
	if strategy == models.StrategyFast {
		return fetchFast(ctx, rawURL, nil)
	}
	return fetchAdaptive(ctx, rawURL, nil)
}

// FetchHTML is a convenience wrapper that discards telemetry.
func FetchHTML(ctx context.Context, rawURL string) (string, error) {
	res, err := Fetch(ctx, rawURL)
	if err != nil {
		return "", err
	}
	return res.HTML, nil
}

// FetchWithConfig retrieves a URL under a per-policy FetchConfig: the
// policy strategy selects the ladder, extra default headers are applied
// on top of the profile set, and timeout_ms bounds the whole call.
func FetchWithConfig(ctx context.Context, rawURL string, cfg *models.FetchConfig) (*Result, error) {
	strategy := models.StrategyAdaptive
	var extra *models.HeaderSet
	if cfg != nil {
		if cfg.Strategy != "" {
			strategy = cfg.Strategy
		}
		extra = cfg.DefaultHeaders
		if cfg.TimeoutMs > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.TimeoutMs)*time.Millisecond)
			defer cancel()
		}
	}
	if strategy == models.StrategyFast {
		return fetchFast(ctx, rawURL, extra)
	}
	return fetchAdaptive(ctx, rawURL, extra)
}

// FetchRaw retrieves a URL with the Minimal profile and no content
// validation beyond the status code. Used for robots.txt and sitemaps,
// which are valid despite failing every HTML check.
func FetchRaw(ctx context.Context, rawURL string) (string, error) {
	body, status, err := send(ctx, clientFor(Minimal), rawURL, Minimal, nil, "")
	if err != nil {
		return "", err
	}
	if status < 200 || status >= 300 {
		return "", fmt.Errorf("status %d (%s)", status, statusLabel(status))
	}
	return body, nil
}

func fetchFast(ctx context.Context, rawURL string, extra *models.HeaderSet) (*Result, error) {
	start := time.Now()
	html, err := attempt(ctx, rawURL, Minimal, extra)
	if err != nil {
		return nil, models.NewFetchError(rawURL, fmt.Sprintf("%s: %s", Minimal, err))
	}
	return &Result{
		HTML:        html,
		ProfileUsed: Minimal,
		DurationMs:  uint64(time.Since(start).Milliseconds()),
		Attempts:    1,
	}, nil
}

func fetchAdaptive(ctx context.Context, rawURL string, extra *models.HeaderSet) (*Result, error) {
	start := time.Now()
	reasons := make([]string, 0, len(adaptiveProfiles))

	for i, p := range adaptiveProfiles {
		html, err := attempt(ctx, rawURL, p, extra)
		if err == nil {
			return &Result{
				HTML:        html,
				ProfileUsed: p,
				DurationMs:  uint64(time.Since(start).Milliseconds()),
				Attempts:    i + 1,
			}, nil
		}
		slog.Debug("fetch profile failed", "url", rawURL, "profile", p.String(), "error", err)
		reasons = append(reasons, fmt.Sprintf("%s: %s", p, err))

		if i < len(adaptiveProfiles)-1 {
			if err := sleepCtx(ctx, time.Duration(50+jitterMs(50))*time.Millisecond); err != nil {
				reasons = append(reasons, fmt.Sprintf("canceled: %s", err))
				break
			}
		}
	}

	return nil, models.NewFetchError(rawURL, fmt.Sprintf(
		"All %d profiles failed: [%s]", len(adaptiveProfiles), strings.Join(reasons, "; ")))
}

// attempt performs one validated request for a profile. A failure whose
// reason looks referer-sensitive (unauthorized/suspicious) is retried
// once with the site origin as Referer before the profile gives up.
func attempt(ctx context.Context, rawURL string, p Profile, extra *models.HeaderSet) (string, error) {
	client := clientFor(p)

	body, status, err := send(ctx, client, rawURL, p, extra, "")
	if err != nil {
		return "", err
	}
	verr := Validate(status, body)
	if verr == nil {
		return body, nil
	}

	if retriableWithReferer(verr) {
		if origin := originOf(rawURL); origin != "" {
			body2, status2, err2 := send(ctx, client, rawURL, p, extra, origin)
			if err2 == nil {
				if verr2 := Validate(status2, body2); verr2 == nil {
					return body2, nil
				}
			}
		}
	}
	return "", verr
}

// send performs a single GET: assemble profile headers (plus optional
// policy headers and Referer), issue the request, read and decode the
// body fully.
func send(ctx context.Context, client *http.Client, rawURL string, p Profile, extra *models.HeaderSet, referer string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", 0, fmt.Errorf("build request: %w", err)
	}
	req.Header = headersFor(p, referer)
	if extra != nil {
		extra.Each(func(name, value string) {
			req.Header.Set(name, value)
		})
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("HTTP request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return "", 0, err
	}
	return body, resp.StatusCode, nil
}

func originOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host + "/"
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// jitterMs returns random-ish jitter in [0, rangeMs) derived from
// high-resolution time bits. Good enough for request pacing without an
// external RNG.
func jitterMs(rangeMs uint64) uint64 {
	if rangeMs == 0 {
		return 0
	}
	now := time.Now()
	nanos := uint64(now.Nanosecond())
	micros := uint64(now.UnixMicro()) & 0xFFFF
	return (nanos ^ (micros << 5)) % rangeMs
}
