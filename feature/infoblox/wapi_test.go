package infoblox

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// wapiRequest is what the fake appliance received. The connector sends search arguments
// of a GET in the JSON body, so Body carries them as well.
type wapiRequest struct {
	Method string
	Path   string
	Query  url.Values
	Body   map[string]interface{}
	Cookie string
	Basic  bool
}

// arg returns a string argument from the body or the query.
func (r wapiRequest) arg(name string) string {
	if v, ok := r.Body[name].(string); ok {
		return v
	}
	return r.Query.Get(name)
}

// fakeWAPI is an httptest appliance. Handlers are keyed by "METHOD path" where path is
// relative to /wapi/<version>/.
type fakeWAPI struct {
	t        *testing.T
	server   *httptest.Server
	mu       sync.Mutex
	requests []wapiRequest
	handlers map[string]func(w http.ResponseWriter, req wapiRequest)
}

func newFakeWAPI(t *testing.T) *fakeWAPI {
	f := &fakeWAPI{t: t, handlers: make(map[string]func(http.ResponseWriter, wapiRequest))}
	f.server = httptest.NewTLSServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeWAPI) serve(w http.ResponseWriter, r *http.Request) {
	req := wapiRequest{
		Method: r.Method,
		Path:   strings.TrimPrefix(r.URL.Path, "/wapi/v2.12/"),
		Query:  r.URL.Query(),
	}
	if ck, err := r.Cookie(authCookie); err == nil {
		req.Cookie = ck.Value
	}
	_, _, req.Basic = r.BasicAuth()
	if data, _ := io.ReadAll(r.Body); len(data) > 0 {
		_ = json.Unmarshal(data, &req.Body)
	}

	f.mu.Lock()
	f.requests = append(f.requests, req)
	handler, ok := f.handlers[req.Method+" "+req.Path]
	f.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"Error": "AdmConProtoError: not found", "code": "Client.Ibap.Data.NotFound", "text": "Reference not found"}`))
		return
	}
	handler(w, req)
}

func (f *fakeWAPI) on(method, path string, handler func(w http.ResponseWriter, req wapiRequest)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[method+" "+path] = handler
}

// result responds with result as JSON: a list for searches, a reference for writes.
func (f *fakeWAPI) result(method, path string, result interface{}) {
	f.on(method, path, func(w http.ResponseWriter, _ wapiRequest) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(result)
	})
}

// fail responds with a WAPI error document.
func (f *fakeWAPI) fail(method, path string, status int, code, text string) {
	f.on(method, path, func(w http.ResponseWriter, _ wapiRequest) {
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]string{"Error": text, "code": code, "text": text})
	})
}

func (f *fakeWAPI) recorded() []wapiRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]wapiRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

func (f *fakeWAPI) find(method, path string) []wapiRequest {
	var out []wapiRequest
	for _, req := range f.recorded() {
		if req.Method == method && req.Path == path {
			out = append(out, req)
		}
	}
	return out
}

func (f *fakeWAPI) client(mutate ...func(*Config)) *Client {
	cfg := Config{
		URL:         f.server.URL,
		Username:    "admin",
		Password:    "infoblox",
		VerifySSL:   false,
		WAPIVersion: "v2.12",
		NetworkView: "default",
		DNSView:     "default",
		RecordType:  RecordHost,
		CreatePTR:   true,
		LoadWorkers: 2,
		CMPType:     "infoblox-sync",
	}
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := NewClient(cfg, zap.NewNop())
	require.NoError(f.t, err)
	return c
}
