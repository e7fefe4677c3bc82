package vaultstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/vault/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hengadev/binx"
	"github.com/hengadev/binx/internal/reliability"
)

// fakeKV serves the subset of the KV v2 HTTP API the store uses.
type fakeKV struct {
	mu      sync.Mutex
	secrets map[string]map[string]any
	token   string
	fail    bool
	flaky   int // number of upcoming requests answered with 503
	calls   int
}

func newFakeKV(t *testing.T) (*fakeKV, *httptest.Server) {
	t.Helper()
	kv := &fakeKV{secrets: make(map[string]map[string]any), token: "test-token"}
	srv := httptest.NewServer(kv)
	t.Cleanup(srv.Close)
	return kv, srv
}

func (kv *fakeKV) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	kv.calls++
	if r.Header.Get("X-Vault-Token") != kv.token {
		writeJSON(w, http.StatusForbidden, map[string]any{"errors": []string{"permission denied"}})
		return
	}
	if kv.flaky > 0 {
		kv.flaky--
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"errors": []string{"sealed"}})
		return
	}
	if kv.fail {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"errors": []string{"internal error"}})
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/v1/secret/")
	switch {
	case r.Method == http.MethodGet && r.URL.Query().Get("list") == "true":
		// the client drops the trailing slash of the list path
		prefix := strings.TrimSuffix(strings.TrimPrefix(path, "metadata/"), "/") + "/"
		var keys []string
		for name := range kv.secrets {
			if rest, ok := strings.CutPrefix(name, prefix); ok {
				keys = append(keys, rest)
			}
		}
		if len(keys) == 0 {
			writeJSON(w, http.StatusNotFound, map[string]any{"errors": []string{}})
			return
		}
		sort.Strings(keys)
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"keys": keys}})

	case (r.Method == http.MethodPut || r.Method == http.MethodPost) && strings.HasPrefix(path, "data/"):
		var body struct {
			Data map[string]any `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"errors": []string{err.Error()}})
			return
		}
		kv.secrets[strings.TrimPrefix(path, "data/")] = body.Data
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"version": 1}})

	case r.Method == http.MethodGet && strings.HasPrefix(path, "data/"):
		data, ok := kv.secrets[strings.TrimPrefix(path, "data/")]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"errors": []string{}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{
			"data":     data,
			"metadata": map[string]any{"version": 1},
		}})

	case r.Method == http.MethodDelete && strings.HasPrefix(path, "metadata/"):
		delete(kv.secrets, strings.TrimPrefix(path, "metadata/"))
		w.WriteHeader(http.StatusNoContent)

	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"errors": []string{"unsupported"}})
	}
}

// with runs fn while holding the server lock.
func (kv *fakeKV) with(fn func()) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	fn()
}

func (kv *fakeKV) callCount() int {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	return kv.calls
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func newTestStore(t *testing.T, addr string) *FrameStore {
	t.Helper()
	store, err := New(Config{
		Address: addr,
		Token:   "test-token",
		Retry:   reliability.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
	})
	require.NoError(t, err)
	return store
}

func TestFrameStorePutGet(t *testing.T) {
	ctx := context.Background()
	kv, srv := newFakeKV(t)
	store := newTestStore(t, srv.URL)

	in := map[string]any{"user": "ann", "scores": []int32{3, 4}}
	require.NoError(t, store.Put(ctx, "session/42", in))

	var stored map[string]any
	kv.with(func() { stored = kv.secrets["binx/session/42"] })
	require.NotNil(t, stored)
	assert.Equal(t, "map", stored[fieldType])
	assert.IsType(t, "", stored[fieldPayload])

	got, err := store.Get(ctx, "session/42")
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

func TestFrameStoreMissingFrame(t *testing.T) {
	_, srv := newFakeKV(t)
	store := newTestStore(t, srv.URL)

	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrFrameNotFound)
}

func TestFrameStoreCorruptPayload(t *testing.T) {
	kv, srv := newFakeKV(t)
	store := newTestStore(t, srv.URL)

	kv.with(func() {
		kv.secrets["binx/bad-base64"] = map[string]any{fieldPayload: "%%%"}
		kv.secrets["binx/no-payload"] = map[string]any{fieldType: "int"}
		kv.secrets["binx/bad-frame"] = map[string]any{fieldPayload: "AX8C"} // START, 0x7f, END
	})

	for _, name := range []string{"bad-base64", "no-payload", "bad-frame"} {
		t.Run(name, func(t *testing.T) {
			_, err := store.Get(context.Background(), name)
			require.Error(t, err)
			assert.True(t, binx.IsParseError(err))
		})
	}
}

func TestFrameStoreDeleteAndList(t *testing.T) {
	ctx := context.Background()
	kv, srv := newFakeKV(t)
	store := newTestStore(t, srv.URL)

	names, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, store.Put(ctx, "b", int64(2)))
	require.NoError(t, store.Put(ctx, "a", int64(1)))

	names, err = store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)

	t.Run("keys with a leading slash", func(t *testing.T) {
		kv.with(func() { kv.secrets[DefaultPrefix+"//c"] = map[string]any{} })
		names, err := store.List(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a", "b", "c"}, names)
		kv.with(func() { delete(kv.secrets, DefaultPrefix+"//c") })
	})

	require.NoError(t, store.Delete(ctx, "a"))
	_, err = store.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrFrameNotFound)
}

func TestFrameStoreErrors(t *testing.T) {
	ctx := context.Background()
	kv, srv := newFakeKV(t)
	store := newTestStore(t, srv.URL)

	t.Run("invalid names", func(t *testing.T) {
		for _, name := range []string{"", "../escape", "/abs", "dir/"} {
			assert.ErrorIs(t, store.Put(ctx, name, "x"), binx.ErrInvalidConfiguration, name)
		}
	})

	t.Run("unsupported value", func(t *testing.T) {
		err := store.Put(ctx, "bad", uint32(1))
		assert.True(t, binx.IsProgrammingError(err))
		kv.with(func() { assert.Empty(t, kv.secrets) })
	})

	t.Run("server failure", func(t *testing.T) {
		kv.with(func() { kv.fail = true })
		t.Cleanup(func() { kv.with(func() { kv.fail = false }) })

		before := kv.callCount()
		err := store.Put(ctx, "x", "y")
		assert.True(t, binx.IsResourceError(err))
		assert.Equal(t, before+3, kv.callCount())
		_, err = store.Get(ctx, "x")
		assert.True(t, binx.IsResourceError(err))
	})

	t.Run("wrong token is not retried", func(t *testing.T) {
		other := newTestStore(t, srv.URL)
		other.client.SetToken("nope")
		before := kv.callCount()
		_, err := other.Get(ctx, "x")
		assert.True(t, binx.IsResourceError(err))
		assert.Equal(t, before+1, kv.callCount())
	})
}

func TestFrameStoreRetriesTransientFailures(t *testing.T) {
	ctx := context.Background()
	kv, srv := newFakeKV(t)
	store := newTestStore(t, srv.URL)

	kv.with(func() { kv.flaky = 2 })
	require.NoError(t, store.Put(ctx, "retry", "ok"))
	assert.Equal(t, 3, kv.callCount())

	kv.with(func() { kv.flaky = 3 })
	_, err := store.Get(ctx, "retry")
	require.Error(t, err)
	assert.True(t, binx.IsResourceError(err))
	assert.Equal(t, 6, kv.callCount())

	got, err := store.Get(ctx, "retry")
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestNewWithClientDefaults(t *testing.T) {
	client, err := api.NewClient(api.DefaultConfig())
	require.NoError(t, err)

	store, err := NewWithClient(client, Config{Mount: "/kv/", Prefix: "/frames/"})
	require.NoError(t, err)
	assert.Equal(t, "kv/data/frames/x", store.dataPath("x"))
	assert.Equal(t, "kv/metadata/frames/x", store.metadataPath("x"))

	_, err = NewWithClient(nil, Config{})
	assert.ErrorIs(t, err, binx.ErrInvalidConfiguration)
}
