/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	ws "nhooyr.io/websocket"

	"github.com/friendsincode/meadowcast/internal/hub"
)

// liveEvent is the wire shape pushed to /api/v1/live subscribers: a
// now_playing change carries Track, a standalone volume change carries
// Volume, matching the hub's Notification split.
type liveEvent struct {
	Type       string  `json:"type"`
	NowPlaying *string `json:"now_playing,omitempty"`
	Volume     *int    `json:"volume,omitempty"`
}

func (a *API) handleLiveWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.Accept(w, r, &ws.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		a.logger.Error().Err(err).Msg("live websocket accept failed")
		return
	}
	defer conn.Close(ws.StatusInternalError, "server error")

	if a.metrics != nil {
		a.metrics.LiveConnections.Inc()
		defer a.metrics.LiveConnections.Dec()
	}

	ctx := r.Context()
	events := make(chan hub.Notification, 32)
	handle := a.notify.Subscribe(func(n hub.Notification) {
		select {
		case events <- n:
		default:
			// Slow consumer: drop rather than block the hub's drain goroutine.
		}
	})
	defer a.notify.Unsubscribe(handle)

	if err := a.sendSnapshot(ctx, conn); err != nil {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	pingTicker := time.NewTicker(15 * time.Second)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(ws.StatusNormalClosure, "context cancelled")
			return
		case <-done:
			return
		case <-pingTicker.C:
			if err := conn.Ping(ctx); err != nil {
				return
			}
		case n := <-events:
			if err := a.sendNotification(ctx, conn, n); err != nil {
				return
			}
		}
	}
}

func (a *API) sendSnapshot(ctx context.Context, conn *ws.Conn) error {
	volume := a.engine.GetVolume()
	return writeLiveEvent(ctx, conn, liveEvent{
		Type:       "now_playing",
		NowPlaying: a.engine.GetNowPlaying(),
		Volume:     &volume,
	})
}

func (a *API) sendNotification(ctx context.Context, conn *ws.Conn, n hub.Notification) error {
	if n.Track != nil {
		var track *string
		if *n.Track != "" {
			track = n.Track
		}
		return writeLiveEvent(ctx, conn, liveEvent{Type: "now_playing", NowPlaying: track, Volume: n.Volume})
	}
	return writeLiveEvent(ctx, conn, liveEvent{Type: "volume", Volume: n.Volume})
}

func writeLiveEvent(ctx context.Context, conn *ws.Conn, ev liveEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return conn.Write(ctx, ws.MessageText, data)
}
