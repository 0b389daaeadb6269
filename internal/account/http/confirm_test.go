package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *testServer) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestConfirmLinkHappyPath(t *testing.T) {
	s := newTestServer(t)

	reply := s.call(t, "register", map[string]any{
		"email": "a@x.com", "password": "pw", "profile": map[string]any{"name": "A"},
	})
	require.Nil(t, reply.Error)

	var registered struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(reply.Result, &registered))

	q := url.Values{}
	q.Set("email", "a@x.com")
	q.Set("token", registered.Token)
	rec := s.get(t, "/confirm/register?"+q.Encode())
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Message string `json:"message"`
		Result  struct {
			Email        string `json:"email"`
			DateRegister string `json:"dateRegister"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "registration confirmed", body.Message)
	assert.Equal(t, "a@x.com", body.Result.Email)
	assert.NotEmpty(t, body.Result.DateRegister)

	// The link is one-shot: replay gets 404.
	rec = s.get(t, "/confirm/register?"+q.Encode())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConfirmLinkMissingParameter(t *testing.T) {
	s := newTestServer(t)

	rec := s.get(t, "/confirm/register?token=abc")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Error map[string]any `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "email", body.Error["parameter"])

	rec = s.get(t, "/confirm/register?email=a@x.com")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "token", body.Error["parameter"])
}

func TestConfirmLinkBadToken(t *testing.T) {
	s := newTestServer(t)

	reply := s.call(t, "register", map[string]any{
		"email": "a@x.com", "password": "pw", "profile": map[string]any{"name": "A"},
	})
	require.Nil(t, reply.Error)

	rec := s.get(t, "/confirm/register?email=a@x.com&token=wrong")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body struct {
		Error map[string]any `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "a@x.com", body.Error["email"])
}

func TestSystemEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := s.get(t, "/livez")
	require.Equal(t, http.StatusOK, rec.Code)

	var health struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "test", health.Version)

	rec = s.get(t, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.get(t, "/.well-known/jwks.json")
	require.Equal(t, http.StatusOK, rec.Code)

	var jwks struct {
		Keys []map[string]any `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jwks))
	assert.NotEmpty(t, jwks.Keys)

	// A dispatched call shows up on the scrape endpoint.
	reply := s.call(t, "getPublicKeyStore", nil)
	require.Nil(t, reply.Error)

	rec = s.get(t, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "rpc_calls_total")
}
