package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func observedNotifier(url string, client *http.Client) (*Notifier, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return NewNotifier(url, client, zap.New(core)), logs
}

func TestAssemblyStarted(t *testing.T) {
	t.Run("posts the requester ci", func(t *testing.T) {
		var got map[string]string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		}))
		defer srv.Close()

		n, logs := observedNotifier(srv.URL, srv.Client())
		n.AssemblyStarted(context.Background(), "1234567")

		assert.Equal(t, map[string]string{"ciUsuario": "1234567"}, got)
		assert.Equal(t, 1, logs.FilterMessage("Assembly notification sent").Len())
	})

	t.Run("rejection is logged, never surfaced", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		n, logs := observedNotifier(srv.URL, srv.Client())
		n.AssemblyStarted(context.Background(), "1234567")

		assert.Equal(t, 1, logs.FilterMessage("Assembly notification rejected").Len())
		assert.Equal(t, 0, logs.FilterMessage("Assembly notification sent").Len())
	})

	t.Run("transport failure is logged, never surfaced", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := srv.URL
		srv.Close()

		n, logs := observedNotifier(url, nil)
		n.AssemblyStarted(context.Background(), "1234567")

		assert.Equal(t, 1, logs.FilterMessage("Assembly notification failed").Len())
	})

	t.Run("empty url disables the ping", func(t *testing.T) {
		n, logs := observedNotifier("", nil)
		n.AssemblyStarted(context.Background(), "1234567")

		assert.Equal(t, 0, logs.Len())
	})
}
