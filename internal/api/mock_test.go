package api

import (
	"io"
	"net/url"
	"strings"
	"sync"

	fhttp "github.com/bogdanfinn/fhttp"
	"github.com/bogdanfinn/tls-client/bandwidth"
)

// recordedRequest is a request seen by MockHttpClient with its body read
type recordedRequest struct {
	Method string
	URL    string
	Header fhttp.Header
	Body   string
}

// MockHttpClient is a mock implementation of tls_client.HttpClient for testing
type MockHttpClient struct {
	mu       sync.Mutex
	Response *fhttp.Response
	Err      error
	// Handler, when set, answers instead of Response/Err
	Handler   func(req *fhttp.Request) (*fhttp.Response, error)
	Requests  []recordedRequest
	IdleClose int
}

func (m *MockHttpClient) GetCookies(u *url.URL) []*fhttp.Cookie           { return nil }
func (m *MockHttpClient) SetCookies(u *url.URL, cookies []*fhttp.Cookie)  {}
func (m *MockHttpClient) SetCookieJar(jar fhttp.CookieJar)                {}
func (m *MockHttpClient) GetCookieJar() fhttp.CookieJar                   { return nil }
func (m *MockHttpClient) SetProxy(proxyUrl string) error                  { return nil }
func (m *MockHttpClient) GetProxy() string                                { return "" }
func (m *MockHttpClient) SetFollowRedirect(followRedirect bool)           {}
func (m *MockHttpClient) GetFollowRedirect() bool                         { return false }
func (m *MockHttpClient) GetBandwidthTracker() bandwidth.BandwidthTracker { return nil }
func (m *MockHttpClient) Get(url string) (*fhttp.Response, error)         { return m.Response, m.Err }
func (m *MockHttpClient) Head(url string) (*fhttp.Response, error)        { return m.Response, m.Err }
func (m *MockHttpClient) Post(url, contentType string, body io.Reader) (*fhttp.Response, error) {
	return m.Response, m.Err
}

// CloseIdleConnections implements the tls_client.HttpClient interface
func (m *MockHttpClient) CloseIdleConnections() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.IdleClose++
}

// Do records the request and returns the canned response
func (m *MockHttpClient) Do(req *fhttp.Request) (*fhttp.Response, error) {
	rec := recordedRequest{
		Method: req.Method,
		URL:    req.URL.String(),
		Header: req.Header.Clone(),
	}
	if req.Body != nil {
		data, _ := io.ReadAll(req.Body)
		rec.Body = string(data)
	}

	m.mu.Lock()
	m.Requests = append(m.Requests, rec)
	handler := m.Handler
	m.mu.Unlock()

	if handler != nil {
		return handler(req)
	}
	return m.Response, m.Err
}

// LastRequest returns the most recent request
func (m *MockHttpClient) LastRequest() recordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Requests) == 0 {
		return recordedRequest{}
	}
	return m.Requests[len(m.Requests)-1]
}

// newResponse builds a response with the given status, content type and body
func newResponse(status int, contentType, body string) *fhttp.Response {
	header := make(fhttp.Header)
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	return &fhttp.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

// NewMockHttpClient creates a new MockHttpClient with a JSON response
func NewMockHttpClient(body string, statusCode int) *MockHttpClient {
	return &MockHttpClient{Response: newResponse(statusCode, "application/json", body)}
}

// NewMockHttpClientWithError creates a new MockHttpClient that returns an error
func NewMockHttpClientWithError(err error) *MockHttpClient {
	return &MockHttpClient{Err: err}
}

func stringsReader(s string) io.Reader {
	return strings.NewReader(s)
}
