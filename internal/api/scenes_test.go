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
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/friendsincode/meadowcast/internal/models"
)

func newTestAPI(t *testing.T) *API {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := database.AutoMigrate(&models.Scene{}, &models.Routine{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return &API{db: database, logger: zerolog.Nop()}
}

func TestHandleScenesCreateAndGet(t *testing.T) {
	a := newTestAPI(t)

	body, _ := json.Marshal(sceneRequest{Name: "rainy-cafe", Path: "./scenes/rainy-cafe"})
	req := httptest.NewRequest("POST", "/api/v1/scenes", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	a.handleScenesCreate(rr, req)
	if rr.Code != 201 {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}

	var created models.Scene
	if err := json.NewDecoder(rr.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == "" || created.Name != "rainy-cafe" {
		t.Fatalf("unexpected scene: %+v", created)
	}

	getReq := httptest.NewRequest("GET", "/api/v1/scenes/"+created.ID, nil)
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("sceneID", created.ID)
	getReq = getReq.WithContext(context.WithValue(getReq.Context(), chi.RouteCtxKey, routeCtx))
	getRR := httptest.NewRecorder()
	a.handleSceneGet(getRR, getReq)
	if getRR.Code != 200 {
		t.Fatalf("expected 200, got %d body=%s", getRR.Code, getRR.Body.String())
	}
}

func TestHandleScenesCreateRejectsEmptyFields(t *testing.T) {
	a := newTestAPI(t)

	body, _ := json.Marshal(sceneRequest{Name: "", Path: ""})
	req := httptest.NewRequest("POST", "/api/v1/scenes", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	a.handleScenesCreate(rr, req)
	if rr.Code != 400 {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestHandleSceneGetMissingReturns404(t *testing.T) {
	a := newTestAPI(t)

	req := httptest.NewRequest("GET", "/api/v1/scenes/nope", nil)
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("sceneID", "nope")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
	rr := httptest.NewRecorder()
	a.handleSceneGet(rr, req)
	if rr.Code != 404 {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestHandleScenesListOrdersByName(t *testing.T) {
	a := newTestAPI(t)
	a.db.Create(&models.Scene{ID: "s2", Name: "zen-garden", Path: "/zen"})
	a.db.Create(&models.Scene{ID: "s1", Name: "ambient-rain", Path: "/rain"})

	req := httptest.NewRequest("GET", "/api/v1/scenes", nil)
	rr := httptest.NewRecorder()
	a.handleScenesList(rr, req)

	var scenes []models.Scene
	if err := json.NewDecoder(rr.Body).Decode(&scenes); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(scenes) != 2 || scenes[0].Name != "ambient-rain" {
		t.Fatalf("expected alphabetical order, got %+v", scenes)
	}
}
