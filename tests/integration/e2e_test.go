//go:build integration
// +build integration

package integration

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsyne-dev/tsyne-host/internal/fetch"
	"github.com/tsyne-dev/tsyne-host/internal/shared/types"
	"github.com/tsyne-dev/tsyne-host/internal/ws"
	"github.com/tsyne-dev/tsyne-host/tests/helpers/testutil"
)

// nextEvent pulls one lifecycle event off a broker feed, failing the test
// if none arrives in time.
func nextEvent(t *testing.T, sub *ws.Subscription) types.Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "event feed closed early")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return types.Event{}
}

// TestEndToEndWorkflow exercises the complete flow:
// install -> launch -> events -> inspect -> close.
func TestEndToEndWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping end-to-end test in short mode")
	}

	host := testutil.NewHost(t, testutil.Options{})

	// Watch every instance while the flow runs.
	sub := host.Broker.Subscribe("")
	defer host.Broker.Unsubscribe(sub)

	var appID string

	t.Run("Install Package", func(t *testing.T) {
		w, body := host.Do(t, "POST", "/registry/install", map[string]interface{}{
			"manifest": testutil.Manifest("greeter", "Greeter", "tsyne/runtime"),
			"source":   "const rt = require('tsyne/runtime'); console.log('hello from ' + rt.platform); exports.greeting = 'hello';",
		})

		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, true, body["success"])
		assert.Equal(t, "greeter", body["package_id"])
	})

	t.Run("Launch Package", func(t *testing.T) {
		w, body := host.Do(t, "POST", "/registry/apps/greeter/launch", nil)

		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "completed", body["state"])
		appID = body["id"].(string)

		exports := body["exports"].(map[string]interface{})
		assert.Equal(t, "hello", exports["greeting"])
	})

	t.Run("Lifecycle Events", func(t *testing.T) {
		launched := nextEvent(t, sub)
		assert.Equal(t, "launched", launched.Type)
		assert.Equal(t, appID, launched.InstanceID)
		assert.Equal(t, types.StateRunning, launched.State)
		assert.NotZero(t, launched.Timestamp)

		console := nextEvent(t, sub)
		require.Equal(t, "console", console.Type)
		line := console.Detail.(types.ConsoleLine)
		assert.Equal(t, "log", line.Level)
		assert.Equal(t, "hello from tsyne-sandbox", line.Message)

		done := nextEvent(t, sub)
		assert.Equal(t, "completed", done.Type)
		assert.Equal(t, appID, done.InstanceID)
		assert.Equal(t, types.StateCompleted, done.State)
	})

	t.Run("Inspect Instance", func(t *testing.T) {
		w, body := host.Do(t, "GET", "/apps/"+appID, nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "greeter", body["package_id"])

		console := body["console"].([]interface{})
		require.Len(t, console, 1)
	})

	t.Run("Close Instance", func(t *testing.T) {
		w, body := host.Do(t, "DELETE", "/apps/"+appID, nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, body["success"])

		closed := nextEvent(t, sub)
		assert.Equal(t, "closed", closed.Type)
		assert.Equal(t, appID, closed.InstanceID)

		// The instance token dies with it.
		assert.Equal(t, 0, host.Tokens.Len())
	})
}

// TestRemoteInstallWorkflow installs a package from a remote URL and runs it.
func TestRemoteInstallWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping end-to-end test in short mode")
	}

	files := http.NewServeMux()
	files.HandleFunc("/apps/echo.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		fmt.Fprint(w, "exports.origin = 'remote';")
	})
	origin := httptest.NewServer(files)
	defer origin.Close()

	host := testutil.NewHost(t, testutil.Options{Fetcher: fetch.NewClient(0)})

	t.Run("Install From URL", func(t *testing.T) {
		w, body := host.Do(t, "POST", "/registry/install", map[string]interface{}{
			"manifest": testutil.Manifest("echo", "Echo"),
			"url":      origin.URL + "/apps/echo.js",
		})

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, body["success"])
		assert.NotEmpty(t, body["digest"])
	})

	t.Run("Launch Fetched Package", func(t *testing.T) {
		w, body := host.Do(t, "POST", "/registry/apps/echo/launch", nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "completed", body["state"])

		exports := body["exports"].(map[string]interface{})
		assert.Equal(t, "remote", exports["origin"])
	})

	t.Run("Missing Remote Source", func(t *testing.T) {
		w, body := host.Do(t, "POST", "/registry/install", map[string]interface{}{
			"manifest": testutil.Manifest("ghost", "Ghost"),
			"url":      origin.URL + "/apps/ghost.js",
		})

		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, body["error"], "download failed")
	})

	t.Run("Unsupported Scheme", func(t *testing.T) {
		w, body := host.Do(t, "POST", "/registry/install", map[string]interface{}{
			"manifest": testutil.Manifest("ftp-app", "FTP App"),
			"url":      "ftp://example.com/app.js",
		})

		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, body["error"], "unsupported url scheme")
	})
}
