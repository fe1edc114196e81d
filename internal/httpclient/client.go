package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// NewRequest builds a request for a single exchange. The address is resolved
// against baseURL when it is relative. Header keys are canonicalised and
// rejected when they contain line breaks.
func NewRequest(ctx context.Context, method, baseURL, address string, body any, headers map[string]string) (*http.Request, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	target, err := ResolveURL(baseURL, address)
	if err != nil {
		return nil, err
	}

	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodGet
	}

	source, err := NewBodySource(body)
	if err != nil {
		return nil, err
	}

	reader, err := source.NewReader()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		_ = reader.Close()
		return nil, err
	}

	if length, ok := source.ContentLength(); ok {
		req.ContentLength = length
	}
	req.GetBody = source.NewReader
	if ct := source.ContentType(); ct != "" {
		req.Header.Set("Content-Type", ct)
	}

	for key, value := range headers {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" || strings.ContainsAny(trimmedKey, "\r\n") {
			return nil, fmt.Errorf("invalid header key %q", key)
		}
		canonicalKey := http.CanonicalHeaderKey(trimmedKey)
		if strings.ContainsAny(value, "\r\n") {
			return nil, fmt.Errorf("invalid header value for %s", canonicalKey)
		}
		req.Header.Set(canonicalKey, value)
	}

	return req, nil
}

// ResolveURL joins a possibly relative address onto baseURL. Absolute
// addresses are returned unchanged.
func ResolveURL(baseURL, address string) (string, error) {
	address = strings.TrimSpace(address)
	baseURL = strings.TrimSpace(baseURL)
	if address == "" && baseURL == "" {
		return "", errors.New("address is required")
	}
	if baseURL == "" {
		return address, nil
	}

	ref, err := url.Parse(address)
	if err != nil {
		return "", fmt.Errorf("parse address: %w", err)
	}
	if ref.IsAbs() {
		return address, nil
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}

// NewClient returns an HTTP client tuned for many concurrent agents sharing
// one process.
func NewClient(timeout time.Duration) *http.Client {
	if timeout < 0 {
		timeout = 0
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
