package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/devbox/internal/infrastructure/config"
	"github.com/GriffinCanCode/devbox/internal/infrastructure/logging"
	"github.com/GriffinCanCode/devbox/internal/orchestrator"
	"github.com/GriffinCanCode/devbox/internal/project"
	"github.com/GriffinCanCode/devbox/tests/helpers/testutil"
)

func newTestServer(t *testing.T) (*Server, *testutil.FakeRuntime) {
	t.Helper()

	rt := testutil.NewFakeRuntime(t)
	rt.Scripts["npm install"] = func(p *testutil.FakeProcess) { p.Finish(0) }

	cfg := config.Default()
	cfg.Logging.Development = true
	cfg.RateLimit.Enabled = false

	srv, err := New(cfg, logging.NewNop(), rt)
	require.NoError(t, err)
	return srv, rt
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServeStartsEnvironment(t *testing.T) {
	srv, rt := newTestServer(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	base := "http://" + ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		return srv.Environment().State() == orchestrator.Running
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, rt.Count("spawn npm run dev"))

	code, body := get(t, base+"/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"status":"healthy"`)

	code, body = get(t, base+"/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "devbox_processes_spawned_total")

	code, body = get(t, base+"/api/files/"+project.DefaultEditablePath)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, rt.File(project.DefaultEditablePath), body)

	cancel()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(ShutdownTimeout):
		t.Fatal("server did not shut down")
	}
	assert.NoError(t, srv.Close())
}

func TestServeKeepsRunningWhenEnvironmentFails(t *testing.T) {
	srv, rt := newTestServer(t)
	rt.MountErr = assert.AnError

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx, ln)

	require.Eventually(t, func() bool {
		return srv.Environment().Err() != nil
	}, 5*time.Second, 10*time.Millisecond)

	code, body := get(t, "http://"+ln.Addr().String()+"/health")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body, "mounting")
}

func TestRateLimiterModes(t *testing.T) {
	request := func(h http.Handler, ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":40000"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w.Code
	}

	tests := []struct {
		name    string
		global  bool
		enabled bool
		second  int
	}{
		{"per client", false, true, http.StatusOK},
		{"global", true, true, http.StatusTooManyRequests},
		{"disabled", true, false, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := testutil.NewFakeRuntime(t)
			cfg := config.Default()
			cfg.RateLimit = config.RateLimitConfig{RequestsPerSecond: 1, Burst: 1, Enabled: tt.enabled, Global: tt.global}

			srv, err := New(cfg, logging.NewNop(), rt)
			require.NoError(t, err)

			assert.Equal(t, http.StatusOK, request(srv.Handler(), "10.0.0.1"))
			assert.Equal(t, tt.second, request(srv.Handler(), "10.0.0.2"))
		})
	}
}

func TestLoadProject(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		tree, err := loadProject("")
		require.NoError(t, err)
		_, ok := tree.Lookup(project.DefaultEditablePath)
		assert.True(t, ok)
	})

	t.Run("yaml file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tree.yaml")
		require.NoError(t, os.WriteFile(path, []byte("hello.txt:\n  file:\n    contents: hi\n"), 0o644))

		tree, err := loadProject(path)
		require.NoError(t, err)
		contents, ok := tree.Lookup("hello.txt")
		require.True(t, ok)
		assert.Equal(t, "hi", contents)
	})

	t.Run("directory", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "pages"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "pages", "index.tsx"), []byte("export {}"), 0o644))
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "node_modules", "react"), 0o755))

		tree, err := loadProject(dir)
		require.NoError(t, err)
		contents, ok := tree.Lookup("pages/index.tsx")
		require.True(t, ok)
		assert.Equal(t, "export {}", contents)
		assert.NotContains(t, tree, "node_modules")
	})

	t.Run("missing", func(t *testing.T) {
		_, err := loadProject(filepath.Join(t.TempDir(), "nope"))
		assert.Error(t, err)
	})
}

func TestCommandsRejectsEmpty(t *testing.T) {
	cfg := config.Default().Commands
	cfg.Dev = "   "

	_, err := commands(cfg)
	assert.ErrorContains(t, err, "dev command")
}
