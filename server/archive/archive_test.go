package archive

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func seed(t *testing.T, s *Service, n int) {
	t.Helper()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range n {
		require.NoError(t, s.Archive(context.Background(), &Entity{
			Title:     fmt.Sprintf("clip %d", i),
			Source:    "https://youtu.be/abc",
			Kind:      "video",
			Success:   i%2 == 0,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
}

func TestService_ArchiveAndList(t *testing.T) {
	_, s, err := Container(setupTestDB(t))
	require.NoError(t, err)

	e := &Entity{
		Title:   "Clip title",
		Source:  "https://www.facebook.com/reel/123",
		Kind:    "audio",
		Path:    "/tmp/fb_reel_123_audio.mp3",
		Size:    4096,
		Success: true,
	}
	require.NoError(t, s.Archive(context.Background(), e))
	assert.NotEmpty(t, e.Id)
	assert.False(t, e.CreatedAt.IsZero())

	res, err := s.List(context.Background(), 0, 0)
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	assert.Equal(t, e.Id, res.Data[0].Id)
	assert.Equal(t, "/tmp/fb_reel_123_audio.mp3", res.Data[0].Path)
	assert.EqualValues(t, 4096, res.Data[0].Size)
	assert.True(t, res.Data[0].Success)
	assert.Zero(t, res.Cursor)
}

func TestService_ListPages(t *testing.T) {
	_, s, err := Container(setupTestDB(t))
	require.NoError(t, err)
	seed(t, s, 5)

	first, err := s.List(context.Background(), 0, 2)
	require.NoError(t, err)
	require.Len(t, first.Data, 2)
	assert.Equal(t, "clip 4", first.Data[0].Title)
	assert.NotZero(t, first.Cursor)

	second, err := s.List(context.Background(), first.Cursor, 2)
	require.NoError(t, err)
	require.Len(t, second.Data, 2)
	assert.Equal(t, "clip 2", second.Data[0].Title)

	last, err := s.List(context.Background(), second.Cursor, 2)
	require.NoError(t, err)
	require.Len(t, last.Data, 1)
	assert.Equal(t, "clip 0", last.Data[0].Title)
	assert.Zero(t, last.Cursor)
}

func TestService_Delete(t *testing.T) {
	_, s, err := Container(setupTestDB(t))
	require.NoError(t, err)

	e := &Entity{Title: "x", Source: "u", Kind: "video"}
	require.NoError(t, s.Archive(context.Background(), e))

	require.NoError(t, s.Delete(context.Background(), e.Id))
	assert.ErrorIs(t, s.Delete(context.Background(), e.Id), ErrNotFound)
}

func TestHandler(t *testing.T) {
	h, s, err := Container(setupTestDB(t))
	require.NoError(t, err)
	seed(t, s, 3)

	r := chi.NewRouter()
	r.Route("/history", h.ApplyRouter())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history?limit=2", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"title":"clip 2"`)
	assert.NotContains(t, rec.Body.String(), `"title":"clip 0"`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/history/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
