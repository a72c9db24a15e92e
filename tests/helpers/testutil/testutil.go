// Package testutil provides testing utilities and helpers for host tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tsyne-dev/tsyne-host/internal/app"
	"github.com/tsyne-dev/tsyne-host/internal/executor"
	"github.com/tsyne-dev/tsyne-host/internal/fetch"
	httpapi "github.com/tsyne-dev/tsyne-host/internal/http"
	"github.com/tsyne-dev/tsyne-host/internal/modules"
	"github.com/tsyne-dev/tsyne-host/internal/registry"
	"github.com/tsyne-dev/tsyne-host/internal/sandbox"
	"github.com/tsyne-dev/tsyne-host/internal/shared/types"
	"github.com/tsyne-dev/tsyne-host/internal/ws"
)

// Host bundles fully wired components behind a test router.
type Host struct {
	Router *gin.Engine
	Apps   *app.Manager
	Store  *registry.Store
	Tokens *sandbox.Registry
	Broker *ws.Broker
}

// Options tweaks what NewHost wires.
type Options struct {
	PoolSize int
	Timeout  time.Duration
	Fetcher  *fetch.Client
}

// NewHost wires a complete in-process host around a temp package store.
// Metrics stay detached so tests can build as many hosts as they like.
func NewHost(t *testing.T, opts Options) *Host {
	t.Helper()

	gin.SetMode(gin.TestMode)

	if opts.PoolSize <= 0 {
		opts.PoolSize = 2
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}

	tokens := sandbox.NewRegistry()

	execCfg := executor.DefaultConfig()
	execCfg.Timeout = opts.Timeout
	pool := executor.NewPool(executor.New(execCfg), opts.PoolSize, 5*time.Second)
	t.Cleanup(func() { pool.Close() })

	store, err := registry.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to open package store: %v", err)
	}
	t.Cleanup(store.Close)

	broker := ws.NewBroker()
	t.Cleanup(broker.Close)

	apps := app.NewManager(tokens, pool, modules.Builtin("test")).
		WithPublisher(broker).
		WithTimeoutCeiling(time.Minute)

	handlers := httpapi.NewHandlers(apps, store, tokens, opts.Fetcher, "test")
	wsHandler := ws.NewHandler(broker)

	router := gin.New()
	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.POST("/sandbox/build", handlers.BuildSandbox)
	router.POST("/sandbox/transform", handlers.TransformSandbox)
	router.POST("/sandbox/runtime", handlers.RuntimeSandbox)
	router.POST("/sandbox/audit", handlers.AuditSandbox)
	router.POST("/sandbox/token", handlers.TokenSandbox)
	router.POST("/apps", handlers.LaunchApp)
	router.GET("/apps", handlers.ListApps)
	router.GET("/apps/:id", handlers.GetApp)
	router.DELETE("/apps/:id", handlers.CloseApp)
	router.POST("/registry/install", handlers.InstallApp)
	router.GET("/registry/apps", handlers.ListRegistryApps)
	router.GET("/registry/apps/:id", handlers.GetRegistryApp)
	router.POST("/registry/apps/:id/launch", handlers.LaunchRegistryApp)
	router.DELETE("/registry/apps/:id", handlers.DeleteRegistryApp)
	router.GET("/stream", wsHandler.HandleConnection)

	return &Host{
		Router: router,
		Apps:   apps,
		Store:  store,
		Tokens: tokens,
		Broker: broker,
	}
}

// Do runs one JSON request against the router and decodes the response
// body into a generic map.
func (h *Host) Do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	h.Router.ServeHTTP(w, req)

	var decoded map[string]interface{}
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("Response is not JSON: %v\n%s", err, w.Body.String())
		}
	}
	return w, decoded
}

// Manifest renders an app manifest for install requests.
func Manifest(id, name string, modules ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "app:\n  id: %s\n  name: %s\n  version: 1.0.0\n", id, name)
	if len(modules) > 0 {
		b.WriteString("sandbox:\n  modules:\n")
		for _, m := range modules {
			fmt.Fprintf(&b, "    - %s\n", m)
		}
	}
	return b.String()
}

// CreateTestPackage creates an installable package for store tests.
func CreateTestPackage(t *testing.T, id string) *types.Package {
	t.Helper()

	return &types.Package{
		ID:      id,
		Name:    "Test Package",
		Version: "1.0.0",
		Source:  "exports.ok = true;",
	}
}
