/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/teambition/rrule-go"
	"gorm.io/gorm"

	"github.com/friendsincode/meadowcast/internal/models"
)

// weekdayRRule maps the spec's three-letter lowercase weekday tokens onto
// rrule-go's RFC5545 weekday constants, used purely for validation: a token
// that isn't a recognized RFC5545 weekday is rejected up front, before it
// ever reaches the scheduler's wall-clock matching.
var weekdayRRule = map[string]rrule.Weekday{
	"mon": rrule.MO,
	"tue": rrule.TU,
	"wed": rrule.WE,
	"thu": rrule.TH,
	"fri": rrule.FR,
	"sat": rrule.SA,
	"sun": rrule.SU,
}

type routineRequest struct {
	SceneID   string `json:"scene_id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Weekdays  string `json:"weekdays,omitempty"`
	Months    string `json:"months,omitempty"`
	Volume    int    `json:"volume"`
}

func (req routineRequest) validate() error {
	if req.SceneID == "" {
		return errors.New("scene_id is required")
	}
	if !isValidHHMM(req.StartTime) || !isValidHHMM(req.EndTime) {
		return errors.New("start_time and end_time must be HH:MM")
	}
	if req.Volume < 0 || req.Volume > 100 {
		return errors.New("volume must be between 0 and 100")
	}
	for _, token := range splitCSV(req.Weekdays) {
		if _, ok := weekdayRRule[token]; !ok {
			return fmt.Errorf("unrecognized weekday token %q", token)
		}
	}
	for _, token := range splitCSV(req.Months) {
		if !models.ValidMonthToken(token) {
			return fmt.Errorf("unrecognized month token %q", token)
		}
	}
	return nil
}

func splitCSV(csv string) []string {
	trimmed := strings.TrimSpace(csv)
	if trimmed == "" {
		return nil
	}
	parts := strings.Split(trimmed, ",")
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		tokens = append(tokens, strings.ToLower(strings.TrimSpace(p)))
	}
	return tokens
}

func isValidHHMM(v string) bool {
	parts := strings.SplitN(v, ":", 2)
	if len(parts) != 2 {
		return false
	}
	if len(parts[0]) != 2 || len(parts[1]) != 2 {
		return false
	}
	for _, c := range parts[0] + parts[1] {
		if c < '0' || c > '9' {
			return false
		}
	}
	h := int(parts[0][0]-'0')*10 + int(parts[0][1]-'0')
	m := int(parts[1][0]-'0')*10 + int(parts[1][1]-'0')
	return h <= 23 && m <= 59
}

func (a *API) handleRoutinesList(w http.ResponseWriter, r *http.Request) {
	var routines []models.Routine
	if err := a.db.Preload("Scene").Order("id ASC").Find(&routines).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list routines")
		return
	}
	writeJSON(w, http.StatusOK, routines)
}

func (a *API) handleRoutinesCreate(w http.ResponseWriter, r *http.Request) {
	var req routineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	routine := models.Routine{
		ID:        newID(),
		SceneID:   req.SceneID,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Weekdays:  strings.Join(splitCSV(req.Weekdays), ","),
		Months:    strings.Join(splitCSV(req.Months), ","),
		Volume:    req.Volume,
	}
	if err := a.db.Create(&routine).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create routine")
		return
	}
	writeJSON(w, http.StatusCreated, routine)
}

func (a *API) handleRoutinesUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "routineID")

	var existing models.Routine
	if err := a.db.First(&existing, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "routine not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load routine")
		return
	}

	var req routineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	existing.SceneID = req.SceneID
	existing.StartTime = req.StartTime
	existing.EndTime = req.EndTime
	existing.Weekdays = strings.Join(splitCSV(req.Weekdays), ",")
	existing.Months = strings.Join(splitCSV(req.Months), ",")
	existing.Volume = req.Volume

	if err := a.db.Save(&existing).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update routine")
		return
	}
	writeJSON(w, http.StatusOK, existing)
}

func (a *API) handleRoutinesDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "routineID")
	if err := a.db.Delete(&models.Routine{}, "id = ?", id).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete routine")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
