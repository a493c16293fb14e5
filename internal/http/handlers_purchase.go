package http

import (
	"net/http"

	"cardbill/internal/log"
)

func (s *Server) handleListPurchases(w http.ResponseWriter, r *http.Request) {
	f, err := parseInstallmentFilter(r)
	if err != nil {
		s.writeError(w, r, err, log.OpList)
		return
	}
	installments, err := s.purchases.ListPurchases(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err, log.OpList)
		return
	}
	NewJSONResponse().Body(toInstallmentResponses(installments)).Write(w)
}

// handleCreatePurchase splits the purchase into installments and returns the first one.
func (s *Server) handleCreatePurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err, log.OpCreate)
		return
	}
	in, err := req.toInput()
	if err != nil {
		s.writeError(w, r, err, log.OpCreate)
		return
	}
	first, err := s.purchases.CreatePurchase(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err, log.OpCreate)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/purchases/"+itoa(first.ID)).
		Body(toInstallmentResponse(first)).
		Write(w)
}

func (s *Server) handleGetPurchase(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err, log.OpRead)
		return
	}
	group, err := s.purchases.GetPurchase(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err, log.OpRead)
		return
	}
	NewJSONResponse().Body(toPurchaseGroupResponse(group)).Write(w)
}

func (s *Server) handleRenamePurchase(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err, log.OpUpdate)
		return
	}
	var req purchasePatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err, log.OpUpdate)
		return
	}
	group, err := s.purchases.RenamePurchase(r.Context(), id, sanitizeInput(req.Name), sanitizeInput(req.Category))
	if err != nil {
		s.writeError(w, r, err, log.OpUpdate)
		return
	}
	NewJSONResponse().Body(toPurchaseGroupResponse(group)).Write(w)
}

// handleDeletePurchase removes the whole purchase; unknown ids still answer 204.
func (s *Server) handleDeletePurchase(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err, log.OpDelete)
		return
	}
	if err := s.purchases.DeletePurchase(r.Context(), id); err != nil {
		s.writeError(w, r, err, log.OpDelete)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
