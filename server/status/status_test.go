package status

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vidfetch/vidfetch/server/internal/downloaders"
	"github.com/vidfetch/vidfetch/server/internal/kv"
)

func stubFreeSpace(t *testing.T, n uint64, err error) {
	t.Helper()
	orig := freeSpace
	freeSpace = func(string) (uint64, error) { return n, err }
	t.Cleanup(func() { freeSpace = orig })
}

func TestCollect(t *testing.T) {
	stubFreeSpace(t, 5_000_000_000, nil)

	mdb := kv.NewStore(afero.NewMemMapFs(), "/data")
	mdb.Set(&kv.Download{
		ID:           "a",
		Orchestrator: downloaders.NewOrchestrator(downloaders.OrchestratorConfig{}),
		CreatedAt:    time.Now(),
	})

	s, err := Collect(mdb, "/dl")
	require.NoError(t, err)
	assert.Equal(t, 1, s.Pending)
	assert.Zero(t, s.Completed)
	assert.Equal(t, "5.0 GB", s.FreeSpaceHuman)
}

func TestApplyRouter(t *testing.T) {
	stubFreeSpace(t, 1024, nil)

	r := chi.NewRouter()
	r.Route("/status", ApplyRouter(kv.NewStore(afero.NewMemMapFs(), "/data"), "/dl"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var s Status
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&s))
	assert.Equal(t, "/dl", s.DownloadPath)
	assert.EqualValues(t, 1024, s.FreeSpace)

	stubFreeSpace(t, 0, errors.New("no such directory"))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
