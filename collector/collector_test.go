package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-epub/config"
	"novel-epub/utils"
)

func listing(links ...string) string {
	var b bytes.Buffer
	b.WriteString("<ul>")
	for _, l := range links {
		fmt.Fprintf(&b, `<li><a href="%s">x</a></li>`, l)
	}
	b.WriteString("</ul>")
	return b.String()
}

func writeJSON(w http.ResponseWriter, html string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"data": html})
}

func newTestCollector(limit int) *Collector {
	return New(utils.NewRestyClient(5*time.Second, config.DefaultUserAgent), limit, utils.DiscardLogger())
}

func TestCollect_OrderAndFailures(t *testing.T) {
	var inFlight, peak atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		assert.Equal(t, "abc", r.URL.Query().Get("story"))

		switch r.URL.Query().Get("page") {
		case "1":
			time.Sleep(50 * time.Millisecond)
			writeJSON(w, listing("/truyen/a/chuong-1", "/truyen/a/chuong-2"))
		case "2":
			http.Error(w, "boom", http.StatusInternalServerError)
		case "3":
			writeJSON(w, listing("https://other.example/chuong-3", "javascript:void(0)", "#top", "//cdn.example/chuong-4"))
		case "4":
			w.Write([]byte("{not json"))
		default:
			writeJSON(w, "")
		}
	}))
	defer srv.Close()

	c := newTestCollector(2)
	links, err := c.Collect(context.Background(), srv.URL+"/api/chapters?story=abc&page=9", 1, 5)
	require.NoError(t, err)

	u, _ := url.Parse(srv.URL)
	assert.Equal(t, []string{
		srv.URL + "/truyen/a/chuong-1",
		srv.URL + "/truyen/a/chuong-2",
		"https://other.example/chuong-3",
		u.Scheme + "://cdn.example/chuong-4",
	}, links)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestCollect_Brotli(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		bw := brotli.NewWriter(&buf)
		json.NewEncoder(bw).Encode(map[string]string{"data": listing("/chuong-1")})
		bw.Close()
		w.Header().Set("Content-Encoding", "br")
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	links, err := newTestCollector(5).Collect(context.Background(), srv.URL, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{srv.URL + "/chuong-1"}, links)
}

func TestCollect_InvalidURL(t *testing.T) {
	_, err := newTestCollector(5).Collect(context.Background(), "not-a-url", 1, 1)
	assert.Error(t, err)
}

func TestCollectToFile_Appends(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, listing("/chuong-"+r.URL.Query().Get("page")))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "urls.txt")
	require.NoError(t, os.WriteFile(path, []byte("https://existing/1\n"), 0644))

	n, err := newTestCollector(5).CollectToFile(context.Background(), srv.URL, 1, 2, path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "https://existing/1\n"+srv.URL+"/chuong-1\n"+srv.URL+"/chuong-2\n", string(data))
}

func TestCollectToFile_NothingFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, "<p>empty</p>")
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "urls.txt")
	n, err := newTestCollector(5).CollectToFile(context.Background(), srv.URL, 1, 1, path)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.NoFileExists(t, path)
}
