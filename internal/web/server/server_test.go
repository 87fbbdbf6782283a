package server

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
}

func newTestServer(t *testing.T, logger *zap.Logger) *Server {
	t.Helper()
	config := DefaultConfig(okHandler())
	config.Address = "127.0.0.1:0"
	config.Logger = logger

	srv, err := New(config)
	require.NoError(t, err)
	require.NoError(t, srv.Listen())
	return srv
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig(okHandler())

	assert.Equal(t, "localhost:8000", config.Address)
	assert.Equal(t, 15*time.Second, config.ReadTimeout)
	assert.Equal(t, 60*time.Second, config.WriteTimeout)
	assert.Equal(t, 60*time.Second, config.IdleTimeout)
	assert.Equal(t, 1<<20, config.MaxHeaderBytes)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil)
	assert.ErrorContains(t, err, "server config cannot be nil")

	_, err = New(&Config{Address: ":0"})
	assert.ErrorContains(t, err, "handler cannot be nil")
}

func TestServer_ServeAndShutdown(t *testing.T) {
	srv := newTestServer(t, nil)
	assert.NotEqual(t, "127.0.0.1:0", srv.Addr())

	done := make(chan error, 1)
	go func() { done <- srv.Serve() }()

	resp, err := http.Get("http://" + srv.Addr() + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "OK", string(body))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.NoError(t, <-done)
}

func TestServer_ListenTwice(t *testing.T) {
	srv := newTestServer(t, nil)
	defer srv.Close()

	addr := srv.Addr()
	require.NoError(t, srv.Listen())
	assert.Equal(t, addr, srv.Addr())
}

func TestServer_ListenError(t *testing.T) {
	srv, err := New(&Config{Address: "127.0.0.1:99999", Handler: okHandler()})
	require.NoError(t, err)
	assert.ErrorContains(t, srv.Serve(), "failed to create listener")
}

func TestServer_LogsAddress(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	srv := newTestServer(t, zap.New(core))

	go srv.Serve()
	require.Eventually(t, func() bool {
		return logs.FilterMessage("server listening").Len() == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, srv.Addr(), logs.FilterMessage("server listening").All()[0].ContextMap()["address"])

	require.NoError(t, srv.Close())
}
