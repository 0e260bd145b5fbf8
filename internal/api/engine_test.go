/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/meadowcast/internal/hub"
	"github.com/friendsincode/meadowcast/internal/mediaplayer"
	"github.com/friendsincode/meadowcast/internal/playback"
)

func newTestAPIWithEngine(t *testing.T) *API {
	t.Helper()
	a := newTestAPI(t)
	notify := hub.New(zerolog.Nop(), 0)
	opener := mediaplayer.NewFakeOpener()
	opener.DefaultDuration = 2 * time.Second
	engine := playback.New(opener, notify, zerolog.Nop(), playback.WithTick(10*time.Millisecond))
	t.Cleanup(engine.Shutdown)
	a.engine = engine
	a.notify = notify
	return a
}

func TestHandleNowPlayingReflectsIdleEngine(t *testing.T) {
	a := newTestAPIWithEngine(t)

	req := httptest.NewRequest("GET", "/api/v1/engine/now-playing", nil)
	rr := httptest.NewRecorder()
	a.handleNowPlaying(rr, req)

	var resp nowPlayingResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Phase != "idle" || resp.NowPlaying != nil {
		t.Fatalf("expected idle engine with no now_playing, got %+v", resp)
	}
}

func TestHandleSetVolumeClampsAndPersists(t *testing.T) {
	a := newTestAPIWithEngine(t)

	body, _ := json.Marshal(volumeRequest{Volume: 150})
	req := httptest.NewRequest("POST", "/api/v1/engine/volume", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	a.handleSetVolume(rr, req)

	var resp map[string]int
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["volume"] != 100 {
		t.Fatalf("expected clamped volume 100, got %d", resp["volume"])
	}
}

func TestHandleStopForceReachesIdle(t *testing.T) {
	a := newTestAPIWithEngine(t)

	body, _ := json.Marshal(stopRequest{Force: true})
	req := httptest.NewRequest("POST", "/api/v1/engine/stop", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	a.handleStop(rr, req)
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if a.engine.GetPhase() != playback.Idle {
		t.Fatalf("expected idle phase after forced stop, got %v", a.engine.GetPhase())
	}
}
