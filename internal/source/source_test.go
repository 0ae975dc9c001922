package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sekaidex/chapterd/internal/constants"
	"github.com/sekaidex/chapterd/internal/domain"
)

func TestMangaDexGetPageList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/at-home/server/abc-123", r.URL.Path)
		fmt.Fprint(w, `{
			"baseUrl": "https://uploads.example.org",
			"chapter": {
				"hash": "deadbeef",
				"data": ["p1.jpg", "p2.png", "p3.jpg"]
			}
		}`)
	}))
	defer srv.Close()

	md := NewMangaDex(NewClient(srv.Client(), 0), srv.URL)
	pages, err := md.GetPageList(context.Background(), &domain.Chapter{ID: 1, RemoteID: "abc-123"})
	require.NoError(t, err)
	require.Len(t, pages, 3)
	assert.Equal(t, 0, pages[0].Index)
	assert.Equal(t, "https://uploads.example.org/data/deadbeef/p1.jpg", pages[0].URL)
	assert.Equal(t, "https://uploads.example.org/data/deadbeef/p2.png", pages[1].URL)
	assert.Equal(t, domain.PageQueued, pages[2].State)
}

func TestMangaDexGetPageListNoRemoteID(t *testing.T) {
	md := NewMangaDex(nil, "http://unused")
	_, err := md.GetPageList(context.Background(), &domain.Chapter{ID: 7})
	require.Error(t, err)
}

func TestMangaDexFetchImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("pngbytes"))
	}))
	defer srv.Close()

	md := NewMangaDex(NewClient(srv.Client(), 0), srv.URL)
	body, contentType, err := md.FetchImage(context.Background(), domain.Page{Index: 0, URL: srv.URL + "/img"})
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "pngbytes", string(data))
	assert.Equal(t, "image/png", contentType)
}

func TestMadaraGetPageList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/series/one-piece/chapter-1", r.URL.Path)
		fmt.Fprint(w, `<html><body>
			<div class="reading-content">
				<img data-src=" https://cdn.example.org/1.jpg ">
				<img src="https://cdn.example.org/2.jpg">
				<img>
			</div>
		</body></html>`)
	}))
	defer srv.Close()

	site := NewMadara(NewClient(srv.Client(), 0), 42, "Example Scans", srv.URL)
	pages, err := site.GetPageList(context.Background(), &domain.Chapter{URL: "/series/one-piece/chapter-1"})
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "https://cdn.example.org/1.jpg", pages[0].URL)
	assert.Equal(t, "https://cdn.example.org/2.jpg", pages[1].URL)
}

func TestClientRetriesOnRateLimit(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(&http.Client{Timeout: 5 * time.Second}, 0)
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := c.Do(context.Background(), req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, calls)
}

func TestManagerPageConcurrency(t *testing.T) {
	m := NewManager()
	m.Register(NewMangaDex(nil, "http://unused"))
	m.Register(NewMadara(nil, 42, "Example Scans", "http://unused"))

	assert.Equal(t, constants.PrimaryPageConcurrency, m.PageConcurrency(MangaDexID))
	assert.Equal(t, constants.SecondaryPageConcurrency, m.PageConcurrency(42))
	assert.Equal(t, constants.SecondaryPageConcurrency, m.PageConcurrency(999))
}

func TestManagerGetUnknown(t *testing.T) {
	m := NewManager()
	_, err := m.Get(123)
	require.Error(t, err)
}
