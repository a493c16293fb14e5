package http

import (
	"context"
	"net/http"
	"time"

	"cardbill/internal/log"
)

// handleHealth is a liveness probe: the process is up and serving.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady checks the store before reporting ready.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]string{"store": "ok"}
	if s.ready != nil {
		if err := s.ready(ctx); err != nil {
			checks["store"] = "failed: " + err.Error()
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
			s.logger.WarnContext(ctx, "Readiness check failed", log.FieldError, err)
		}
	}

	NewJSONResponse().Status(httpStatus).Body(map[string]any{
		"status": status,
		"checks": checks,
	}).Write(w)
}

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	cards, err := s.catalog.ListCards(r.Context())
	if err != nil {
		s.writeError(w, r, err, log.OpList)
		return
	}
	out := make([]cardResponse, 0, len(cards))
	for _, c := range cards {
		out = append(out, toCardResponse(c))
	}
	NewJSONResponse().Body(out).Write(w)
}

func (s *Server) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	var req cardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err, log.OpCreate)
		return
	}
	card, err := s.catalog.CreateCard(r.Context(), req.toCard())
	if err != nil {
		s.writeError(w, r, err, log.OpCreate)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/cards/"+itoa(card.ID)).
		Body(toCardResponse(card)).
		Write(w)
}

func (s *Server) handleGetCard(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err, log.OpRead)
		return
	}
	card, err := s.catalog.GetCard(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err, log.OpRead)
		return
	}
	NewJSONResponse().Body(toCardResponse(card)).Write(w)
}

func (s *Server) handleUpdateCard(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err, log.OpUpdate)
		return
	}
	var req cardPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err, log.OpUpdate)
		return
	}
	card, err := s.catalog.UpdateCard(r.Context(), id, req.toPatch())
	if err != nil {
		s.writeError(w, r, err, log.OpUpdate)
		return
	}
	NewJSONResponse().Body(toCardResponse(card)).Write(w)
}

func (s *Server) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err, log.OpDelete)
		return
	}
	if err := s.catalog.DeleteCard(r.Context(), id); err != nil {
		s.writeError(w, r, err, log.OpDelete)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.catalog.ListCategories(r.Context())
	if err != nil {
		s.writeError(w, r, err, log.OpList)
		return
	}
	out := make([]categoryResponse, 0, len(cats))
	for _, c := range cats {
		out = append(out, categoryResponse{Name: c.Name, Label: c.Label})
	}
	NewJSONResponse().Body(out).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err, log.OpCreate)
		return
	}
	cat, err := s.catalog.CreateCategory(r.Context(), categoryFrom(req))
	if err != nil {
		s.writeError(w, r, err, log.OpCreate)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(categoryResponse{Name: cat.Name, Label: cat.Label}).Write(w)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.DeleteCategory(r.Context(), r.PathValue("name")); err != nil {
		s.writeError(w, r, err, log.OpDelete)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
