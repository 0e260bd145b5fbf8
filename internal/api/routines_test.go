/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/meadowcast/internal/models"
)

func TestHandleRoutinesCreateValidatesWeekdayTokens(t *testing.T) {
	a := newTestAPI(t)
	scene := models.Scene{ID: "scene-1", Name: "cafe", Path: "/cafe"}
	a.db.Create(&scene)

	body, _ := json.Marshal(routineRequest{
		SceneID:   scene.ID,
		StartTime: "08:00",
		EndTime:   "10:00",
		Weekdays:  "mon,tue,xyz",
		Volume:    50,
	})
	req := httptest.NewRequest("POST", "/api/v1/routines", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	a.handleRoutinesCreate(rr, req)
	if rr.Code != 400 {
		t.Fatalf("expected 400 for bad weekday token, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestHandleRoutinesCreateAndList(t *testing.T) {
	a := newTestAPI(t)
	scene := models.Scene{ID: "scene-1", Name: "cafe", Path: "/cafe"}
	a.db.Create(&scene)

	body, _ := json.Marshal(routineRequest{
		SceneID:   scene.ID,
		StartTime: "08:00",
		EndTime:   "10:00",
		Weekdays:  "Mon,Wed",
		Months:    "jan",
		Volume:    50,
	})
	req := httptest.NewRequest("POST", "/api/v1/routines", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	a.handleRoutinesCreate(rr, req)
	if rr.Code != 201 {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}

	var created models.Routine
	if err := json.NewDecoder(rr.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Weekdays != "mon,wed" {
		t.Fatalf("expected normalized lowercase weekdays, got %q", created.Weekdays)
	}

	listReq := httptest.NewRequest("GET", "/api/v1/routines", nil)
	listRR := httptest.NewRecorder()
	a.handleRoutinesList(listRR, listReq)

	var routines []models.Routine
	if err := json.NewDecoder(listRR.Body).Decode(&routines); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(routines) != 1 {
		t.Fatalf("expected 1 routine, got %d", len(routines))
	}
}

func TestHandleRoutinesDelete(t *testing.T) {
	a := newTestAPI(t)
	scene := models.Scene{ID: "scene-1", Name: "cafe", Path: "/cafe"}
	a.db.Create(&scene)
	routine := models.Routine{ID: "routine-1", SceneID: scene.ID, StartTime: "08:00", EndTime: "10:00", Volume: 50}
	a.db.Create(&routine)

	req := httptest.NewRequest("DELETE", "/api/v1/routines/routine-1", nil)
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("routineID", "routine-1")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
	rr := httptest.NewRecorder()
	a.handleRoutinesDelete(rr, req)
	if rr.Code != 204 {
		t.Fatalf("expected 204, got %d", rr.Code)
	}

	var count int64
	a.db.Model(&models.Routine{}).Where("id = ?", "routine-1").Count(&count)
	if count != 0 {
		t.Fatalf("expected routine to be deleted")
	}
}

func TestIsValidHHMM(t *testing.T) {
	cases := map[string]bool{
		"08:00": true,
		"23:59": true,
		"8:00":  false,
		"0800":  false,
		"":      false,
	}
	for input, want := range cases {
		if got := isValidHHMM(input); got != want {
			t.Errorf("isValidHHMM(%q) = %v, want %v", input, got, want)
		}
	}
}
