package fhttp

import (
	"fmt"
	"net/http"
	"time"

	fhttp "github.com/bogdanfinn/fhttp"
	tlsclient "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"
)

// NewClient returns a standard http client whose requests are sent with a
// Chrome TLS fingerprint.
func NewClient(timeout time.Duration, proxy string) (*http.Client, error) {
	secs := int(timeout.Seconds())
	if secs <= 0 {
		secs = 120
	}
	options := []tlsclient.HttpClientOption{
		tlsclient.WithTimeoutSeconds(secs),
		tlsclient.WithClientProfile(profiles.Chrome_120),
	}
	if proxy != "" {
		options = append(options, tlsclient.WithProxyUrl(proxy))
	}
	c, err := tlsclient.NewHttpClient(tlsclient.NewNoopLogger(), options...)
	if err != nil {
		return nil, fmt.Errorf("fhttp: couldn't create tls client: %w", err)
	}
	return &http.Client{
		Transport: &Transport{client: c},
	}, nil
}

// Transport adapts a tls client to http.RoundTripper.
type Transport struct {
	client tlsclient.HttpClient
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	freq, err := fhttp.NewRequestWithContext(req.Context(), req.Method, req.URL.String(), req.Body)
	if err != nil {
		return nil, fmt.Errorf("fhttp: couldn't create request: %w", err)
	}
	freq.Header = fhttp.Header(req.Header.Clone())
	freq.ContentLength = req.ContentLength

	resp, err := t.client.Do(freq)
	if err != nil {
		return nil, err
	}
	return &http.Response{
		Status:        resp.Status,
		StatusCode:    resp.StatusCode,
		Proto:         resp.Proto,
		ProtoMajor:    resp.ProtoMajor,
		ProtoMinor:    resp.ProtoMinor,
		Header:        http.Header(resp.Header),
		Body:          resp.Body,
		ContentLength: resp.ContentLength,
		Request:       req,
	}, nil
}
