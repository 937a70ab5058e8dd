package httpquery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zeebo/assert"
)

func fastConfig() FailoverConfig {
	cfg := DefaultFailoverConfig()
	cfg.RetryDelay = time.Millisecond
	cfg.HealthCheckInterval = 0
	cfg.Timeout = 2 * time.Second
	return cfg
}

func TestGetJSON_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, r.URL.Path, "/pools")
		_, _ = w.Write([]byte(`{"name":"ok"}`))
	}))
	defer srv.Close()

	c, err := NewClient("test", []string{srv.URL}, fastConfig())
	assert.NoError(t, err)
	defer c.Close()

	var out struct {
		Name string `json:"name"`
	}
	assert.NoError(t, c.GetJSON(context.Background(), "/pools", &out))
	assert.Equal(t, out.Name, "ok")
}

func TestPostJSON_SendsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, r.Method, http.MethodPost)
		assert.Equal(t, r.Header.Get("Content-Type"), "application/json")
		var in map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": in["msg"]})
	}))
	defer srv.Close()

	c, err := NewClient("test", []string{srv.URL}, fastConfig())
	assert.NoError(t, err)

	var out map[string]string
	assert.NoError(t, c.PostJSON(context.Background(), "/echo", map[string]string{"msg": "hi"}, &out))
	assert.Equal(t, out["echo"], "hi")
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, err := NewClient("test", []string{srv.URL}, fastConfig())
	assert.NoError(t, err)

	var out map[string]any
	assert.NoError(t, c.GetJSON(context.Background(), "/x", &out))
	assert.Equal(t, calls.Load(), int32(3))
}

func TestClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c, err := NewClient("test", []string{srv.URL}, fastConfig())
	assert.NoError(t, err)

	var out map[string]any
	err = c.GetJSON(context.Background(), "/missing", &out)
	assert.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, calls.Load(), int32(1))
}

func TestFailoverToBackup(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer primary.Close()
	backup := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"from":"backup"}`))
	}))
	defer backup.Close()

	c, err := NewClient("test", []string{primary.URL, backup.URL}, fastConfig())
	assert.NoError(t, err)
	defer c.Close()

	var out map[string]string
	assert.NoError(t, c.GetJSON(context.Background(), "/q", &out))
	assert.Equal(t, out["from"], "backup")
	assert.Equal(t, c.CurrentURL(), backup.URL)
}

func TestNewClient_RequiresEndpoint(t *testing.T) {
	_, err := NewClient("test", nil, fastConfig())
	assert.Error(t, err)

	_, err = NewClient("test", []string{"not a url"}, fastConfig())
	assert.Error(t, err)
}
