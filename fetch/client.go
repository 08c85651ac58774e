package fetch

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
	tls "github.com/refraction-networking/utls"
	"golang.org/x/net/publicsuffix"
)

const (
	requestTimeout       = 30 * time.Second
	redirectLimit        = 10
	redirectLimitMinimal = 5
	maxBodyBytes         = 10 << 20
)

// Per-profile TLS ClientHello specs, computed once at init and reused
// for every connection. ALPN is pinned to http/1.1 because Go's
// http.Transport cannot drive HTTP/2 framing over a utls connection.
var (
	chromeSpec tls.ClientHelloSpec
	safariSpec tls.ClientHelloSpec
	specsOK    bool
)

func init() {
	chrome, err1 := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	safari, err2 := tls.UTLSIdToSpec(tls.HelloSafari_Auto)
	if err1 != nil || err2 != nil {
		// Should never happen with a valid utls version; the dialer
		// falls back to HelloChrome_Auto as-is.
		return
	}
	for _, spec := range []*tls.ClientHelloSpec{&chrome, &safari} {
		for i, ext := range spec.Extensions {
			if alpn, ok := ext.(*tls.ALPNExtension); ok {
				alpn.AlpnProtocols = []string{"http/1.1"}
				spec.Extensions[i] = alpn
				break
			}
		}
	}
	chromeSpec, safariSpec = chrome, safari
	specsOK = true
}

func specFor(p Profile) *tls.ClientHelloSpec {
	switch p {
	case MacOS, IOS:
		return &safariSpec
	}
	return &chromeSpec
}

func dialTLS(ctx context.Context, network, addr string, spec *tls.ClientHelloSpec) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	host, _, _ := net.SplitHostPort(addr)

	if !specsOK {
		tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloChrome_Auto)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, err
		}
		return tlsConn, nil
	}

	tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
	if err := tlsConn.ApplyPreset(spec); err != nil {
		conn.Close()
		return nil, fmt.Errorf("fetch: apply tls spec: %w", err)
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return tlsConn, nil
}

// buildClient constructs the HTTP client for one profile: browser TLS
// fingerprint, bounded redirects (fewer for Minimal), a cookie jar for
// everything except Minimal, and the 30 s request timeout.
func buildClient(p Profile) *http.Client {
	spec := specFor(p)
	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialTLS(ctx, network, addr, spec)
		},
		ForceAttemptHTTP2: false,
	}

	limit := redirectLimit
	if p == Minimal {
		limit = redirectLimitMinimal
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   requestTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= limit {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	if p != Minimal {
		if jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List}); err == nil {
			client.Jar = jar
		}
	}
	return client
}

// Process-wide client cache: one client per profile, built on first
// demand and never evicted.
var clientCache [numProfiles]struct {
	once   sync.Once
	client *http.Client
}

func clientFor(p Profile) *http.Client {
	slot := &clientCache[p]
	slot.once.Do(func() {
		slot.client = buildClient(p)
	})
	return slot.client
}

// readBody drains and decodes a response body according to its
// Content-Encoding. Accept-Encoding is set explicitly on every request,
// which disables the transport's automatic gzip handling, so all
// decoding happens here.
func readBody(resp *http.Response) (string, error) {
	var reader io.Reader = io.LimitReader(resp.Body, maxBodyBytes)

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(reader)
		if err != nil {
			return "", fmt.Errorf("fetch: gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "br":
		reader = brotli.NewReader(reader)
	case "deflate":
		fr := flate.NewReader(reader)
		defer fr.Close()
		reader = fr
	case "zstd":
		zr, err := zstd.NewReader(reader)
		if err != nil {
			return "", fmt.Errorf("fetch: zstd reader: %w", err)
		}
		defer zr.Close()
		reader = zr.IOReadCloser()
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("fetch: read body: %w", err)
	}
	return string(body), nil
}
