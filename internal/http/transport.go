// Package http builds the *http.Client used to reach the locker API,
// including corporate proxy support.
package http

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	nethttp "net/http"
	"net/url"
	"os"
	"strings"

	ntlmssp "github.com/Azure/go-ntlmssp"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http/httpproxy"
	"golang.org/x/net/http2"

	"github.com/document-locker/locker/internal/config"
	"github.com/document-locker/locker/internal/constants"
)

// Proxy modes
const (
	ProxyNone   = "no-proxy"
	ProxySystem = "system"
	ProxyBasic  = "basic"
	ProxyNTLM   = "ntlm"
)

// NewClient returns an HTTP client honoring cfg's proxy mode and timeout.
//
// NTLM wraps the transport in a negotiator, so HTTP/2 tuning only applies
// to the other modes. HTTP/2 is also disabled whenever a proxy is in play;
// set FORCE_HTTP2=true to override, or DISABLE_HTTP2=true to force HTTP/1.1.
func NewClient(cfg *config.Config) (*nethttp.Client, error) {
	tr := baseTransport()

	mode := strings.ToLower(cfg.ProxyMode)
	proxied := false

	switch mode {
	case ProxyNone, "":
		tr.Proxy = nil
	case ProxySystem:
		tr.Proxy = nethttp.ProxyFromEnvironment
		proxied = envProxySet()
	case ProxyBasic, ProxyNTLM:
		if cfg.ProxyHost == "" {
			log.Warn().Str("mode", mode).Msg("proxy host missing, connecting directly")
			tr.Proxy = nil
			break
		}
		if cfg.ProxyUser != "" && cfg.ProxyPassword == "" {
			log.Warn().Msg("proxy user configured but password missing, proxy auth disabled")
		}
		tr.Proxy = proxyFuncWithBypass(buildProxyURL(cfg), cfg.NoProxy)
		proxied = true
	default:
		return nil, fmt.Errorf("unsupported proxy mode: %s", cfg.ProxyMode)
	}

	configureHTTP2(tr, proxied)

	client := &nethttp.Client{
		Transport: tr,
		Timeout:   cfg.Timeout(),
	}
	if mode == ProxyNTLM && cfg.ProxyHost != "" {
		client.Transport = ntlmssp.Negotiator{RoundTripper: tr}
	}
	return client, nil
}

func baseTransport() *nethttp.Transport {
	return &nethttp.Transport{
		DialContext: (&net.Dialer{
			Timeout:   constants.HTTPDialTimeout,
			KeepAlive: constants.HTTPDialKeepAlive,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		MaxIdleConns:          32,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       constants.HTTPIdleConnTimeout,
		TLSHandshakeTimeout:   constants.HTTPTLSHandshakeTimeout,
		ExpectContinueTimeout: constants.HTTPExpectContinueTimeout,
	}
}

func configureHTTP2(tr *nethttp.Transport, proxied bool) {
	disable := os.Getenv("DISABLE_HTTP2") == "true" ||
		(proxied && os.Getenv("FORCE_HTTP2") != "true")
	if disable {
		tr.ForceAttemptHTTP2 = false
		tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
		return
	}
	tr.ForceAttemptHTTP2 = true
	_ = http2.ConfigureTransport(tr)
}

func envProxySet() bool {
	for _, k := range []string{"HTTP_PROXY", "HTTPS_PROXY", "http_proxy", "https_proxy"} {
		if os.Getenv(k) != "" {
			return true
		}
	}
	return false
}

// buildProxyURL constructs a proxy URL from config. Credentials are only
// embedded when both user and password are known.
func buildProxyURL(cfg *config.Config) *url.URL {
	port := cfg.ProxyPort
	if port == 0 {
		port = 8080
	}
	u := &url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(cfg.ProxyHost, fmt.Sprint(port)),
	}
	if cfg.ProxyUser != "" && cfg.ProxyPassword != "" {
		u.User = url.UserPassword(cfg.ProxyUser, cfg.ProxyPassword)
	}
	return u
}

// proxyFuncWithBypass routes through proxyURL except for hosts matched by
// the NO_PROXY-style noProxy list.
func proxyFuncWithBypass(proxyURL *url.URL, noProxy string) func(*nethttp.Request) (*url.URL, error) {
	if noProxy == "" {
		return nethttp.ProxyURL(proxyURL)
	}
	pc := httpproxy.Config{
		HTTPProxy:  proxyURL.String(),
		HTTPSProxy: proxyURL.String(),
		NoProxy:    noProxy,
	}
	fn := pc.ProxyFunc()
	return func(req *nethttp.Request) (*url.URL, error) {
		u, err := fn(req.URL)
		if u == nil {
			log.Debug().Str("host", req.URL.Host).Msg("proxy bypass")
		}
		return u, err
	}
}

// NeedsProxyPassword reports whether an interactive password prompt is
// needed before the proxy can be used.
func NeedsProxyPassword(cfg *config.Config) bool {
	mode := strings.ToLower(cfg.ProxyMode)
	if mode != ProxyBasic && mode != ProxyNTLM {
		return false
	}
	return cfg.ProxyUser != "" && cfg.ProxyPassword == ""
}

// Warmup issues a GET against baseURL/status to establish the proxy
// connection and surface proxy auth failures early.
func Warmup(ctx context.Context, client *nethttp.Client, baseURL string) error {
	ctx, cancel := context.WithTimeout(ctx, constants.ProxyWarmupTimeout)
	defer cancel()

	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodGet, strings.TrimRight(baseURL, "/")+"/status", nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("warmup request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == nethttp.StatusProxyAuthRequired {
		return fmt.Errorf("proxy authentication required")
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("warmup request returned server error: %d", resp.StatusCode)
	}
	return nil
}
