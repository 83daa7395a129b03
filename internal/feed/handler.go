package feed

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/ir"
)

// EventSource reads committed events. *ledger.Ledger implements it.
type EventSource interface {
	Events(ctx context.Context, afterSeq int64, limit int) ([]ir.Event, error)
}

const (
	backlogPage  = 500
	writeTimeout = 5 * time.Second
	readTimeout  = 60 * time.Second
)

// Handler streams events to websocket clients: first the backlog after the
// ?after=<seq> query parameter, then live events. Every message is one
// event as JSON.
type Handler struct {
	source      EventSource
	broadcaster *Broadcaster
	logger      *slog.Logger
	upgrader    websocket.Upgrader
}

// NewHandler creates a websocket event feed.
func NewHandler(source EventSource, broadcaster *Broadcaster, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		source:      source,
		broadcaster: broadcaster,
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	after := int64(0)
	if v := r.URL.Query().Get("after"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			http.Error(rw, "after must be a non-negative sequence number", http.StatusBadRequest)
			return
		}
		after = n
	}

	conn, err := h.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// Subscribe before reading the backlog so nothing committed in between
	// is missed; duplicates are filtered by seq below.
	sub := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(sub)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reader loop: only detects the client going away.
	go func() {
		defer cancel()
		for {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	last, err := h.sendBacklog(ctx, conn, after)
	if err != nil {
		h.logger.Debug("feed backlog aborted", "error", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub.C:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "subscriber too slow"),
					time.Now().Add(time.Second))
				return
			}
			if e.Seq <= last {
				continue
			}
			if err := writeEvent(conn, e); err != nil {
				return
			}
			last = e.Seq
		}
	}
}

func (h *Handler) sendBacklog(ctx context.Context, conn *websocket.Conn, after int64) (int64, error) {
	last := after
	for {
		events, err := h.source.Events(ctx, last, backlogPage)
		if err != nil {
			return last, err
		}
		for _, e := range events {
			if err := writeEvent(conn, e); err != nil {
				return last, err
			}
			last = e.Seq
		}
		if len(events) < backlogPage {
			return last, nil
		}
	}
}

func writeEvent(conn *websocket.Conn, e ir.Event) error {
	b, err := marshalEvent(e)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}
