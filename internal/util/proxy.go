package util

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/proxy"
)

// NewHTTPClient builds the HTTP client used by provider adapters. Upstream
// calls rely on a long idle timeout because streamed responses can stay
// silent between chunks; connection reuse is bounded so a single provider
// cannot exhaust the socket budget.
func NewHTTPClient(proxyURL string, useProxy bool) *http.Client {
	transport := &http.Transport{
		MaxConnsPerHost:     100,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     120 * time.Second,
	}
	client := &http.Client{Transport: transport}
	if useProxy && proxyURL != "" {
		SetProxy(proxyURL, client)
	}
	return client
}

// SetProxy configures the provided HTTP client with proxy settings.
// It supports SOCKS5, HTTP, and HTTPS proxies. The function modifies the
// client's transport to route requests through the configured proxy server.
func SetProxy(rawURL string, httpClient *http.Client) *http.Client {
	proxyURL, errParse := url.Parse(rawURL)
	if errParse != nil {
		log.Errorf("invalid proxy url %q: %v", rawURL, errParse)
		return httpClient
	}

	transport, ok := httpClient.Transport.(*http.Transport)
	if !ok || transport == nil {
		transport = &http.Transport{}
	}

	switch proxyURL.Scheme {
	case "socks5":
		username := proxyURL.User.Username()
		password, _ := proxyURL.User.Password()
		proxyAuth := &proxy.Auth{User: username, Password: password}
		dialer, errSOCKS5 := proxy.SOCKS5("tcp", proxyURL.Host, proxyAuth, proxy.Direct)
		if errSOCKS5 != nil {
			log.Errorf("create SOCKS5 dialer failed: %v", errSOCKS5)
			return httpClient
		}
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.Dial(network, addr)
		}
	case "http", "https":
		transport.Proxy = http.ProxyURL(proxyURL)
	default:
		log.Warnf("unsupported proxy scheme %q, proxy ignored", proxyURL.Scheme)
		return httpClient
	}

	httpClient.Transport = transport
	return httpClient
}
