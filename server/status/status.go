package status

import (
	"encoding/json"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/vidfetch/vidfetch/server/internal/downloaders"
	"github.com/vidfetch/vidfetch/server/internal/kv"
	"golang.org/x/sys/unix"
)

type Status struct {
	Pending        int    `json:"pending"`
	Downloading    int    `json:"downloading"`
	Completed      int    `json:"completed"`
	Failed         int    `json:"failed"`
	DownloadPath   string `json:"download_path"`
	FreeSpace      uint64 `json:"free_space"`
	FreeSpaceHuman string `json:"free_space_human"`
}

// freeSpace is replaced in tests.
var freeSpace = func(path string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	return st.Bavail * uint64(st.Bsize), nil
}

func Collect(mdb *kv.Store, downloadPath string) (*Status, error) {
	s := &Status{DownloadPath: downloadPath}

	for _, d := range mdb.All() {
		switch d.State {
		case downloaders.StateIdle:
			s.Pending++
		case downloaders.StateRunning:
			s.Downloading++
		case downloaders.StateFinished:
			s.Completed++
		case downloaders.StateFailed:
			s.Failed++
		}
	}

	free, err := freeSpace(downloadPath)
	if err != nil {
		return nil, err
	}
	s.FreeSpace = free
	s.FreeSpaceHuman = humanize.Bytes(free)

	return s, nil
}

func ApplyRouter(mdb *kv.Store, downloadPath string) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")

			s, err := Collect(mdb, downloadPath)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			if err := json.NewEncoder(w).Encode(s); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
		})
	}
}
