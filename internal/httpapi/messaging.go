package httpapi

import (
	"net/http"
	"strings"

	"zazoom-be/internal/notify"
	"zazoom-be/internal/utils"
)

type messagingRequest struct {
	OrderID     string `json:"order_id"`
	Status      string `json:"status"`
	Phone       string `json:"phone"`
	InstagramID string `json:"instagram_id"`
}

func (m messagingRequest) recipient() notify.Recipient {
	return notify.Recipient{Phone: m.Phone, InstagramID: m.InstagramID}
}

func (s *Server) orderConfirmation(w http.ResponseWriter, r *http.Request) {
	var req messagingRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.OrderID) == "" {
		utils.WriteJSONError(w, "order_id is required", http.StatusBadRequest)
		return
	}
	if s.Notifier == nil {
		writeError(w, r, errUnavailable)
		return
	}

	if err := s.Notifier.OrderConfirmation(r.Context(), req.recipient(), req.OrderID); err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) orderUpdate(w http.ResponseWriter, r *http.Request) {
	var req messagingRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.OrderID) == "" || strings.TrimSpace(req.Status) == "" {
		utils.WriteJSONError(w, "order_id and status are required", http.StatusBadRequest)
		return
	}
	if s.Notifier == nil {
		writeError(w, r, errUnavailable)
		return
	}

	if err := s.Notifier.OrderUpdate(r.Context(), req.recipient(), req.OrderID, req.Status); err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) deliveryConfirmation(w http.ResponseWriter, r *http.Request) {
	var req messagingRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.OrderID) == "" {
		utils.WriteJSONError(w, "order_id is required", http.StatusBadRequest)
		return
	}
	if s.Notifier == nil {
		writeError(w, r, errUnavailable)
		return
	}

	if err := s.Notifier.DeliveryConfirmation(r.Context(), req.recipient(), req.OrderID); err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}
