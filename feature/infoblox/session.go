package infoblox

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	ib "github.com/infobloxopen/infoblox-go-client"
	"go.uber.org/zap"
)

// authCookie is the session cookie issued by the appliance after a basic-auth request.
const authCookie = "ibapauth"

// APIError is a non-2xx WAPI response.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	// Code is the WAPI error code (e.g., "Client.Ibap.Data.Conflict").
	Code string
	Text string
}

func (e *APIError) Error() string {
	msg := e.Text
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("infoblox: %s %s returned %d: %s", e.Method, e.Path, e.StatusCode, msg)
}

// NotFound reports whether the appliance said the object does not exist.
func (e *APIError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound || strings.Contains(e.Code, "Data.NotFound")
}

// Conflict reports whether the appliance rejected a duplicate object.
func (e *APIError) Conflict() bool {
	return strings.Contains(e.Code, "Data.Conflict") || strings.Contains(strings.ToLower(e.Text), "already exists")
}

// Exhausted reports whether a network had no free address left for a nextavailableip call.
func (e *APIError) Exhausted() bool {
	return strings.Contains(strings.ToLower(e.Text), "available ip")
}

// sessionRequestor is the connector's ib.HttpRequestor. The request builder always adds
// basic auth; once the appliance issues an ibapauth cookie the header is dropped and the
// cookie is sent instead.
type sessionRequestor struct {
	client *http.Client
	logger *zap.Logger

	mu     sync.Mutex
	cookie *http.Cookie
}

// Init builds the HTTP client from the connector's transport settings.
func (r *sessionRequestor) Init(cfg ib.TransportConfig) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !cfg.SslVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	if cfg.HttpPoolConnections > 0 {
		transport.MaxIdleConnsPerHost = cfg.HttpPoolConnections
	}
	// HttpRequestTimeout holds seconds, as NewTransportConfig stores it
	r.client = &http.Client{Transport: transport, Timeout: cfg.HttpRequestTimeout * time.Second}
}

// SendRequest executes req and returns the response body, or an *APIError for non-2xx.
func (r *sessionRequestor) SendRequest(req *http.Request) ([]byte, error) {
	r.mu.Lock()
	cookie := r.cookie
	r.mu.Unlock()
	if cookie != nil {
		req.Header.Del("Authorization")
		req.AddCookie(cookie)
	}

	path := objectPath(req)
	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("infoblox: %s %s: %w", req.Method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("infoblox: read %s response: %w", path, err)
	}

	r.logger.Debug("WAPI request",
		zap.String("method", req.Method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	for _, ck := range resp.Cookies() {
		if ck.Name == authCookie {
			r.mu.Lock()
			r.cookie = ck
			r.mu.Unlock()
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusUnauthorized && cookie != nil {
			// Expired session, the next request falls back to basic auth
			r.mu.Lock()
			r.cookie = nil
			r.mu.Unlock()
		}
		return nil, newAPIError(req.Method, path, resp.StatusCode, data)
	}
	return data, nil
}

func newAPIError(method, path string, status int, body []byte) *APIError {
	apiErr := &APIError{Method: method, Path: path, StatusCode: status}
	if len(body) == 0 {
		return apiErr
	}
	var wapiErr struct {
		Code string `json:"code"`
		Text string `json:"text"`
	}
	if json.Unmarshal(body, &wapiErr) == nil {
		apiErr.Code = wapiErr.Code
		apiErr.Text = wapiErr.Text
	} else {
		apiErr.Text = strings.TrimSpace(string(body))
	}
	return apiErr
}

// objectPath strips the /wapi/<version>/ prefix from a request path.
func objectPath(req *http.Request) string {
	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 3)
	if len(parts) == 3 && parts[0] == "wapi" {
		return parts[2]
	}
	return req.URL.Path
}
