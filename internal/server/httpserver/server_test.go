package httpserver

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gradekeeper/internal/logging"
)

func reserveAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().String()
}

func TestRun_ServesUntilCancelled(t *testing.T) {
	addr := reserveAddr(t)
	srv := NewHTTPServer(addr, logging.NewNopLogger(), &fakeSyncer{}, nil, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server still running after cancel")
	}

	_, err := http.Get("http://" + addr + "/health")
	assert.Error(t, err)
}

func TestRun_ListenError(t *testing.T) {
	srv := NewHTTPServer("127.0.0.1:99999", logging.NewNopLogger(), &fakeSyncer{}, nil, time.Second)

	err := srv.Run(context.Background())
	require.Error(t, err)
}
