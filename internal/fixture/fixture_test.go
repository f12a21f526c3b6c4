package fixture

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_ListUsers(t *testing.T) {
	svc, err := New()
	require.NoError(t, err)
	defer svc.Close()

	srv := httptest.NewServer(svc.Handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/users")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out []userBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out, 2)
}

func TestNew_DeletePostThenNotFound(t *testing.T) {
	svc, err := New()
	require.NoError(t, err)
	defer svc.Close()

	srv := httptest.NewServer(svc.Handler)
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/posts/5", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req2, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/posts/5", nil)
	resp2, err := http.DefaultClient.Do(req2)
	require.NoError(t, err)
	resp2.Body.Close()
	require.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestNew_OptionsMissingAllow(t *testing.T) {
	svc, err := New()
	require.NoError(t, err)
	defer svc.Close()

	srv := httptest.NewServer(svc.Handler)
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/users", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, resp.Header.Get("Allow"))
}

func TestNew_PatchNotAllowedMissingAllow(t *testing.T) {
	svc, err := New()
	require.NoError(t, err)
	defer svc.Close()

	srv := httptest.NewServer(svc.Handler)
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodPatch, srv.URL+"/api/users", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	require.Empty(t, resp.Header.Get("Allow"))
}

func TestNew_HeadHasBodyViolation(t *testing.T) {
	svc, err := New()
	require.NoError(t, err)
	defer svc.Close()

	srv := httptest.NewServer(svc.Handler)
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodHead, srv.URL+"/api/posts", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.NotEqual(t, "0", resp.Header.Get("Content-Length"))
	require.NotEmpty(t, resp.Header.Get("Content-Length"))
}

func TestNew_SourceReflectsAuditLogGrowth(t *testing.T) {
	svc, err := New()
	require.NoError(t, err)
	defer svc.Close()

	srv := httptest.NewServer(svc.Handler)
	defer srv.Close()

	before, err := svc.Source.Count(context.Background(), "audit_log")
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/api/users")
	require.NoError(t, err)
	resp.Body.Close()

	after, err := svc.Source.Count(context.Background(), "audit_log")
	require.NoError(t, err)
	require.Greater(t, after, before)
}
