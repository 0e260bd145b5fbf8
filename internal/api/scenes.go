/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/friendsincode/meadowcast/internal/models"
)

type sceneRequest struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

func (a *API) handleScenesList(w http.ResponseWriter, r *http.Request) {
	var scenes []models.Scene
	if err := a.db.Order("name ASC").Find(&scenes).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list scenes")
		return
	}
	writeJSON(w, http.StatusOK, scenes)
}

func (a *API) handleScenesCreate(w http.ResponseWriter, r *http.Request) {
	var req sceneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" || req.Path == "" {
		writeError(w, http.StatusBadRequest, "name and path are required")
		return
	}

	sc := models.Scene{ID: newID(), Name: req.Name, Path: req.Path}
	if err := a.db.Create(&sc).Error; err != nil {
		writeError(w, http.StatusConflict, "scene name must be unique")
		return
	}
	writeJSON(w, http.StatusCreated, sc)
}

func (a *API) handleSceneGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sceneID")
	var sc models.Scene
	if err := a.db.First(&sc, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "scene not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load scene")
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

func (a *API) handleSceneDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sceneID")
	if err := a.db.Delete(&models.Scene{}, "id = ?", id).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete scene")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
