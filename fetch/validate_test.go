package fetch

import (
	"strings"
	"testing"
)

// longHTML pads a body so it passes the minimum-length check.
func longHTML(content string) string {
	return "<!DOCTYPE html><html><head><title>t</title></head><body>" + content +
		strings.Repeat(" lorem ipsum dolor sit amet", 30) + "</body></html>"
}

func TestValidate_NormalContent(t *testing.T) {
	if err := Validate(200, longHTML("<h1>Welcome</h1><p>Normal content.</p>")); err != nil {
		t.Errorf("expected ok, got %v", err)
	}
}

func TestValidate_StatusCodes(t *testing.T) {
	body := longHTML("<p>content</p>")
	tests := []struct {
		status int
		want   string
	}{
		{429, "status 429 (rate limited)"},
		{403, "status 403 (forbidden)"},
		{404, "status 404 (not found)"},
		{401, "status 401 (unauthorized)"},
		{400, "status 400 (bad request)"},
		{500, "status 500 (server error)"},
		{503, "status 503 (unknown error)"},
		{301, "status 301 (unknown error)"},
	}
	for _, tt := range tests {
		err := Validate(tt.status, body)
		if err == nil {
			t.Fatalf("status %d: expected error", tt.status)
		}
		if err.Error() != tt.want {
			t.Errorf("status %d: got %q, want %q", tt.status, err.Error(), tt.want)
		}
	}
}

func TestValidate_TooShort(t *testing.T) {
	err := Validate(200, "<html><body>Short</body></html>")
	if err == nil || err.Error() != "invalid - body is too short" {
		t.Errorf("got %v, want invalid - body is too short", err)
	}
}

func TestValidate_MissingHTMLMarkers(t *testing.T) {
	body := `{"status":"ok","data":"` + strings.Repeat("json not html ", 50) + `"}`
	err := Validate(200, body)
	if err == nil || err.Error() != "invalid - missing HTML markers" {
		t.Errorf("got %v, want invalid - missing HTML markers", err)
	}
}

func TestValidate_Unauthorized(t *testing.T) {
	err := Validate(200, longHTML("<h1>Access Denied</h1><p>Permission denied to access this resource</p>"))
	if err == nil || err.Error() != "unauthorized - access denied" {
		t.Errorf("got %v, want unauthorized - access denied", err)
	}
}

func TestValidate_Suspicious(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"cloudflare challenge", "Checking your browser... cf-browser-verification", "suspicious - cf-browser-verification"},
		{"cloudflare captcha", "Please complete the captcha to continue. cf-captcha-container", "suspicious - please complete the captcha"},
		{"perimeterx", "PerimeterX robot detection blocking this request", "suspicious - bot detection"},
		{"generic captcha", "Please solve this captcha to verify you are a human", "suspicious - verify you are a human"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(200, longHTML(tt.body))
			if err == nil || err.Error() != tt.want {
				t.Errorf("got %v, want %q", err, tt.want)
			}
		})
	}
}

func TestValidate_JSONLDBypassesPatternChecks(t *testing.T) {
	body := longHTML(`<script type="application/ld+json">{"@type":"Recipe"}</script>` +
		`<span>unauthorized</span><span>verify you are a human</span>`)
	if err := Validate(200, body); err != nil {
		t.Errorf("JSON-LD page should bypass pattern checks, got %v", err)
	}
}

func TestValidate_JSONLDStillRequiresHTML(t *testing.T) {
	body := `application/ld+json ` + strings.Repeat("padding ", 80)
	err := Validate(200, body)
	if err == nil || err.Error() != "invalid - missing HTML markers" {
		t.Errorf("got %v, want invalid - missing HTML markers", err)
	}
}

func TestJitterMs(t *testing.T) {
	for i := 0; i < 100; i++ {
		if got := jitterMs(100); got >= 100 {
			t.Fatalf("jitterMs(100) = %d, want < 100", got)
		}
	}
	if got := jitterMs(0); got != 0 {
		t.Errorf("jitterMs(0) = %d, want 0", got)
	}
}
