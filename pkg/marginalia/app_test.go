package marginalia

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marginalia-app/marginalia/pkg/models"
	"github.com/marginalia-app/marginalia/pkg/store"
	"github.com/marginalia-app/marginalia/pkg/store/memory"
)

type testServer struct {
	t   *testing.T
	app *App
	srv *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	config := DefaultConfig()
	config.BaseURL = "https://reader.example"
	app := NewWithStore(config, memory.New(), zerolog.Nop())
	srv := httptest.NewServer(app.Handler())
	t.Cleanup(srv.Close)
	return &testServer{t: t, app: app, srv: srv}
}

func (s *testServer) do(method, path, reader string, body any) (*http.Response, map[string]any) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req, err := http.NewRequest(method, s.srv.URL+path, &buf)
	require.NoError(s.t, err)
	req.Header.Set("Content-Type", "application/json")
	if reader != "" {
		req.Header.Set(ReaderHeader, reader)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func (s *testServer) reader(name string) string {
	s.t.Helper()
	resp, body := s.do("POST", "/api/readers", "", map[string]any{"name": name})
	require.Equal(s.t, http.StatusCreated, resp.StatusCode)
	return body["id"].(string)
}

func (s *testServer) command(reader string, env map[string]any) (*http.Response, map[string]any) {
	return s.do("POST", "/api/readers/"+reader+"/activities", reader, env)
}

type partialStore struct {
	store.Store
}

func (partialStore) PartialWrites() bool { return true }

func TestWarnsAboutStoresWithoutRollback(t *testing.T) {
	var buf bytes.Buffer
	config := DefaultConfig()

	NewWithStore(config, memory.New(), zerolog.New(&buf))
	assert.Empty(t, buf.String())

	config.Store.Backend = BackendSurrealDB
	NewWithStore(config, partialStore{Store: memory.New()}, zerolog.New(&buf))
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), `"backend":"surrealdb"`)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/health", "/api/health"} {
		resp, body := s.do("GET", path, "", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "healthy", body["status"])
		assert.Equal(t, "memory", body["store"])
	}
}

func TestProcessCommand(t *testing.T) {
	s := newTestServer(t)
	alice := s.reader("alice")

	resp, body := s.command(alice, map[string]any{
		"type":   "Create",
		"object": map[string]any{"type": "Publication", "name": "Moby Dick", "readingOrder": []any{"c1.html"}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	location := resp.Header.Get("Location")
	assert.True(t, strings.HasPrefix(location, "https://reader.example/activities/"), location)
	assert.Equal(t, location, body["id"])
	assert.Equal(t, "Create", body["type"])
	assert.Equal(t, alice, body["actor"])
	object := body["object"].(map[string]any)
	assert.Equal(t, "Publication", object["type"])
	assert.Equal(t, "Moby Dick", object["name"])

	activityID := strings.TrimPrefix(location, "https://reader.example/activities/")
	resp, body = s.do("GET", "/api/activities/"+activityID, alice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, location, body["id"])

	bob := s.reader("bob")
	resp, _ = s.do("GET", "/api/activities/"+activityID, bob, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = s.do("GET", "/api/readers/"+alice+"/activities?limit=10", alice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["totalItems"])
}

func TestFailureBodies(t *testing.T) {
	s := newTestServer(t)
	alice, bob := s.reader("alice"), s.reader("bob")

	resp, body := s.command(bob, map[string]any{
		"type":   "Create",
		"object": map[string]any{"type": "Publication", "name": "Bob's", "readingOrder": []any{"a"}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	bobsPub := body["object"].(map[string]any)["id"].(string)

	tests := []struct {
		name    string
		env     any
		status  int
		kind    string
		details func(t *testing.T, d map[string]any)
	}{
		{
			name:   "invalid json",
			env:    "{not json",
			status: http.StatusBadRequest,
			kind:   "BadEnvelope",
		},
		{
			name:   "missing verb",
			env:    map[string]any{"object": map[string]any{"type": "Tag"}},
			status: http.StatusBadRequest,
			kind:   "BadEnvelope",
			details: func(t *testing.T, d map[string]any) {
				assert.Contains(t, d["missingParams"], "body.type")
			},
		},
		{
			name:   "validation",
			env:    map[string]any{"type": "Create", "object": map[string]any{"type": "Publication", "name": "x", "readingOrder": []any{}}},
			status: http.StatusBadRequest,
			kind:   "ValidationError",
			details: func(t *testing.T, d map[string]any) {
				validation := d["validation"].(map[string]any)
				first := validation["readingOrder"].([]any)[0].(map[string]any)
				assert.Equal(t, "required", first["keyword"])
				assert.Equal(t, "Create Publication", d["activity"])
				assert.Equal(t, "Publication", d["type"])
			},
		},
		{
			name:   "not found",
			env:    map[string]any{"type": "Delete", "object": map[string]any{"type": "Tag", "id": models.NewTagID().String()}},
			status: http.StatusNotFound,
			kind:   "NotFound",
			details: func(t *testing.T, d map[string]any) {
				assert.Equal(t, "Tag", d["type"])
			},
		},
		{
			name:   "forbidden",
			env:    map[string]any{"type": "Delete", "object": map[string]any{"type": "Publication", "id": bobsPub}},
			status: http.StatusForbidden,
			kind:   "Forbidden",
			details: func(t *testing.T, d map[string]any) {
				assert.Equal(t, "Publication", d["type"])
				assert.Equal(t, bobsPub, d["id"])
				assert.Equal(t, "Delete Publication", d["activity"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := s.do("POST", "/api/readers/"+alice+"/activities", alice, tt.env)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.EqualValues(t, tt.status, body["statusCode"])
			assert.Equal(t, tt.kind, body["error"])
			if tt.details != nil {
				tt.details(t, body["details"].(map[string]any))
			}
		})
	}
}

func TestReaderIdentity(t *testing.T) {
	s := newTestServer(t)
	alice, bob := s.reader("alice"), s.reader("bob")
	env := map[string]any{"type": "Create", "object": map[string]any{"type": "Tag", "name": "x"}}

	resp, _ := s.do("POST", "/api/readers/"+alice+"/activities", "", env)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := s.do("POST", "/api/readers/"+alice+"/activities", bob, env)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "Reader", body["details"].(map[string]any)["type"])
}

func TestReadOnlyMode(t *testing.T) {
	s := newTestServer(t)
	alice := s.reader("alice")

	resp, body := s.do("POST", "/api/admin/read-only", "", map[string]any{"readOnly": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["readOnly"])

	resp, body = s.command(alice, map[string]any{
		"type":   "Create",
		"object": map[string]any{"type": "Tag", "name": "x"},
	})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "Infrastructure", body["error"])
	assert.Equal(t, map[string]any{"activity": "Create Tag"}, body["details"])

	s.app.SetReadOnly(false)
	resp, _ = s.command(alice, map[string]any{
		"type":   "Create",
		"object": map[string]any{"type": "Tag", "name": "x"},
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}
