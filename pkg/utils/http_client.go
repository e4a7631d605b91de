package utils

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/publicsuffix"
)

// UserAgent is sent with every outbound request.
const UserAgent = "hostinfo/1.0"

var (
	httpClient     *http.Client
	httpClientOnce sync.Once
)

// SharedHTTPClient returns the process-wide HTTP client, creating it on first use.
func SharedHTTPClient() *http.Client {
	httpClientOnce.Do(func() {
		// A nil jar just disables cookies.
		jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})

		transport := &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   15 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          10,
			MaxIdleConnsPerHost:   2,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}

		httpClient = &http.Client{
			Timeout:   30 * time.Second,
			Jar:       jar,
			Transport: transport,
		}
	})
	return httpClient
}

// FetchResult encapsulates the results of an HTTP fetch operation.
type FetchResult struct {
	StatusCode int
	Status     string
	Headers    http.Header
	Body       []byte
}

// FetchURL performs a GET request for targetURL using client, or the shared
// client when client is nil.
func FetchURL(ctx context.Context, client *http.Client, targetURL string) (*FetchResult, error) {
	if client == nil {
		client = SharedHTTPClient()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "new request %s", targetURL)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch %s", targetURL)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "read body %s", targetURL)
	}

	return &FetchResult{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Headers:    resp.Header,
		Body:       body,
	}, nil
}
