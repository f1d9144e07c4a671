package rest

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/vidfetch/vidfetch/server/internal/progress"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func terminal(e progress.Event) bool {
	return e.Kind == progress.Finished || e.Kind == progress.Failed
}

// Progress streams the events of a download over a websocket until it
// finishes, fails or the client goes away.
func (h *Handler) Progress() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var (
			events = make(chan progress.Event, 16)
			done   = make(chan struct{})
		)

		_, unsub, err := h.service.Subscribe(id, func(e progress.Event) {
			select {
			case events <- e:
			case <-done:
			}
		})
		if err != nil {
			writeError(w, err)
			return
		}
		defer unsub()
		defer close(done)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("websocket upgrade failed", slog.String("id", id), slog.Any("err", err))
			return
		}
		defer conn.Close()

		gone := make(chan struct{})
		go func() {
			defer close(gone)
			for {
				if _, _, err := conn.NextReader(); err != nil {
					return
				}
			}
		}()

		send := func(e progress.Event) bool {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(e); err != nil {
				slog.Debug("websocket write failed", slog.String("id", id), slog.Any("err", err))
				return false
			}
			return !terminal(e)
		}

		if last, ok := h.service.bus.Last(id); ok && !send(last) {
			return
		}

		for {
			select {
			case e := <-events:
				if !send(e) {
					conn.WriteControl(
						websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(e.Kind)),
						time.Now().Add(writeWait),
					)
					return
				}
			case <-gone:
				return
			case <-r.Context().Done():
				return
			}
		}
	}
}
