package download

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"fleet-installer/internal/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadWritesExecutableFile(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.UserAgent()
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "Foo.dmg")
	c := New("default-agent")
	require.NoError(t, c.Download(context.Background(), srv.URL+"/foo.dmg", dest, "Vendor/1.0"))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())
	assert.Equal(t, "Vendor/1.0", gotUA)
}

func TestDownloadRejectsNon200(t *testing.T) {
	for _, status := range []int{http.StatusNoContent, http.StatusNotFound, http.StatusInternalServerError} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		dest := filepath.Join(t.TempDir(), "artifact")
		err := New("").Download(context.Background(), srv.URL, dest, "")
		srv.Close()

		var se *StatusError
		require.True(t, errors.As(err, &se), "status %d", status)
		assert.Equal(t, status, se.Status)
		assert.NoFileExists(t, dest)
	}
}

func TestDownloadDefaultUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.UserAgent()
	}))
	defer srv.Close()

	require.NoError(t, New("default-agent").Download(context.Background(), srv.URL, filepath.Join(t.TempDir(), "f"), ""))
	assert.Equal(t, "default-agent", gotUA)
}

func TestFetchConditional(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(`{"tag_name":"v1.0.0"}`))
	}))
	defer srv.Close()

	c := New("")
	fresh, err := c.Fetch(context.Background(), srv.URL, "", nil, "")
	require.NoError(t, err)
	assert.False(t, fresh.Cached)
	assert.Equal(t, `"v1"`, fresh.ETag())

	hit, err := c.Fetch(context.Background(), srv.URL, fresh.ETag(), []byte("cached body"), "")
	require.NoError(t, err)
	assert.True(t, hit.Cached)
	assert.Equal(t, "cached body", string(hit.Body))
}

func TestFetchFailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := New("").Fetch(context.Background(), srv.URL, "", nil, "")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusForbidden, se.Status)
}

func TestCachedFetchPersistsAndReuses(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.Header.Get("If-None-Match") == "abc" {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", "abc")
		_, _ = w.Write([]byte("latest"))
	}))
	defer srv.Close()

	store := cache.New(t.TempDir())
	c := New("")

	first, err := c.CachedFetch(context.Background(), store, "github.o.r", srv.URL, "")
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := c.CachedFetch(context.Background(), store, "github.o.r", srv.URL, "")
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, "latest", string(second.Body))
	assert.Equal(t, 2, requests)
}

func TestCachedFetchDropsOrphanedETag(t *testing.T) {
	var conditional []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conditional = append(conditional, r.Header.Get("If-None-Match"))
		_, _ = w.Write([]byte("latest"))
	}))
	defer srv.Close()

	store := cache.New(t.TempDir())
	require.NoError(t, store.Write("github.o.r.etag", "stale"))

	resp, err := New("").CachedFetch(context.Background(), store, "github.o.r", srv.URL, "")
	require.NoError(t, err)
	assert.Equal(t, "latest", string(resp.Body))
	assert.Equal(t, []string{""}, conditional)

	_, ok := store.Read("github.o.r.etag")
	assert.False(t, ok, "an ETag without its body must not be kept")
}
