package httpclient

import (
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"apiconform/internal/config"
	"apiconform/internal/model"
)

func TestSend_PlainResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Echo", r.Method)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	client, err := New(config.ServiceConfig{BaseURL: srv.URL, TimeoutSecs: 5}, RetryConfig{Attempts: 1})
	require.NoError(t, err)

	resp, err := client.Send(context.Background(), &model.Request{Method: "GET", Path: "/x"})
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, "hello", string(resp.Body))
	require.Equal(t, []string{"GET"}, resp.HeaderValues("X-Echo"))
}

func TestSend_DecodesGzip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		gz.Write([]byte("compressed body"))
		gz.Close()
	}))
	defer srv.Close()

	client, err := New(config.ServiceConfig{BaseURL: srv.URL, TimeoutSecs: 5}, RetryConfig{Attempts: 1})
	require.NoError(t, err)

	resp, err := client.Send(context.Background(), &model.Request{Method: "GET", Path: "/x"})
	require.NoError(t, err)
	require.Equal(t, "compressed body", string(resp.Body))
}

func TestSend_BearerAuthHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := New(config.ServiceConfig{
		BaseURL:     srv.URL,
		TimeoutSecs: 5,
		Auth:        config.AuthConfig{Type: "bearer", Token: "abc123"},
	}, RetryConfig{Attempts: 1})
	require.NoError(t, err)

	_, err = client.Send(context.Background(), &model.Request{Method: "GET", Path: "/x"})
	require.NoError(t, err)
	require.Equal(t, "Bearer abc123", gotAuth)
}

func TestSend_RetriesOnTransportFailure(t *testing.T) {
	client, err := New(config.ServiceConfig{BaseURL: "http://127.0.0.1:0", TimeoutSecs: 1}, RetryConfig{Attempts: 2})
	require.NoError(t, err)

	_, err = client.Send(context.Background(), &model.Request{Method: "GET", Path: "/x"})
	require.Error(t, err)
}
