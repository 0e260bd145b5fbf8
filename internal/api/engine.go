/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"net/http"
)

type nowPlayingResponse struct {
	NowPlaying *string `json:"now_playing"`
	Volume     int     `json:"volume"`
	Phase      string  `json:"phase"`
}

func (a *API) handleNowPlaying(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, nowPlayingResponse{
		NowPlaying: a.engine.GetNowPlaying(),
		Volume:     a.engine.GetVolume(),
		Phase:      a.engine.GetPhase().String(),
	})
}

type volumeRequest struct {
	Volume int `json:"volume"`
}

func (a *API) handleSetVolume(w http.ResponseWriter, r *http.Request) {
	var req volumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	a.engine.SetVolume(req.Volume)
	writeJSON(w, http.StatusOK, map[string]int{"volume": a.engine.GetVolume()})
}

type stopRequest struct {
	Force          bool `json:"force"`
	TimeoutSeconds int  `json:"timeout_seconds,omitempty"`
}

func (a *API) handleStop(w http.ResponseWriter, r *http.Request) {
	var req stopRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if req.Force {
		a.engine.Stop(true)
	} else {
		timeout := req.TimeoutSeconds
		if timeout <= 0 {
			timeout = 300
		}
		a.engine.StopAfterCurrentOrTimeout(timeout)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopping"})
}

func (a *API) handleResume(w http.ResponseWriter, r *http.Request) {
	if a.scheduler != nil {
		a.scheduler.ResumeIfShouldPlay()
	}
	writeJSON(w, http.StatusOK, nowPlayingResponse{
		NowPlaying: a.engine.GetNowPlaying(),
		Volume:     a.engine.GetVolume(),
		Phase:      a.engine.GetPhase().String(),
	})
}
