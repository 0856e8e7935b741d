// Package server provides the HTTP server and routing for rosterd.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/shiftops/rosterd/internal/events"
	"github.com/shiftops/rosterd/internal/utils"
)

// EventsStreamHandler streams bus events to websocket clients as JSON frames.
type EventsStreamHandler struct {
	bus *events.Bus
	log zerolog.Logger
}

// NewEventsStreamHandler creates the websocket event stream handler
func NewEventsStreamHandler(bus *events.Bus, log zerolog.Logger) *EventsStreamHandler {
	return &EventsStreamHandler{
		bus: bus,
		log: log.With().Str("component", "events_ws").Logger(),
	}
}

// ServeHTTP handles GET /api/events/ws. The optional types query parameter
// filters the stream to a comma-separated set of event types.
func (h *EventsStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	var allowed map[events.EventType]bool
	if types := utils.ParseCSV(r.URL.Query().Get("types")); types != nil {
		allowed = make(map[events.EventType]bool, len(types))
		for _, t := range types {
			allowed[events.EventType(t)] = true
		}
	}

	// Buffered so a slow client drops events instead of blocking emitters
	eventCh := make(chan events.EventWithData, 100)
	unsubscribe := h.bus.SubscribeAll(func(e events.EventWithData) {
		if allowed != nil && !allowed[e.Type] {
			return
		}
		select {
		case eventCh <- e:
		default:
			h.log.Warn().
				Str("event_type", string(e.Type)).
				Msg("Event channel full, dropping event")
		}
	})
	defer unsubscribe()

	h.log.Info().
		Str("remote", r.RemoteAddr).
		Str("types_filter", r.URL.Query().Get("types")).
		Msg("Client connected to event stream")

	// The stream outlives the request timeout window. CloseRead cancels the
	// returned context when the client goes away.
	ctx := conn.CloseRead(context.Background())

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info().Str("remote", r.RemoteAddr).Msg("Client disconnected from event stream")
			conn.Close(websocket.StatusNormalClosure, "")
			return

		case e := <-eventCh:
			if err := h.writeEvent(ctx, conn, &e); err != nil {
				h.log.Debug().Err(err).Msg("Websocket write failed")
				return
			}

		case <-heartbeat.C:
			pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				h.log.Debug().Err(err).Msg("Websocket ping failed")
				return
			}
		}
	}
}

func (h *EventsStreamHandler) writeEvent(ctx context.Context, conn *websocket.Conn, e *events.EventWithData) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
