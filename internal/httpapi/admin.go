package httpapi

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"zazoom-be/internal/admin"
	"zazoom-be/internal/auth"
	"zazoom-be/internal/delivery"
	"zazoom-be/internal/logger"
	"zazoom-be/internal/order"
	"zazoom-be/internal/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if s.Admin == nil {
		writeError(w, r, admin.ErrLoginDisabled)
		return
	}
	var req loginRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	token, exp, err := s.Admin.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/api/admin",
		Expires:  exp,
		HttpOnly: true,
		Secure:   s.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
	utils.WriteJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: exp})
}

// orderFilter reads ?status=&limit=&offset= from the admin listing.
func orderFilter(r *http.Request) (order.Filter, error) {
	q := r.URL.Query()
	var f order.Filter
	if raw := q.Get("status"); raw != "" {
		st, err := order.ParseStatus(raw)
		if err != nil {
			return f, err
		}
		f.Status = &st
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return f, errBadPaging
		}
		f.Limit = n
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return f, errBadPaging
		}
		f.Offset = n
	}
	return f, nil
}

func (s *Server) adminOrders(w http.ResponseWriter, r *http.Request) {
	f, err := orderFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	orders, err := s.Admin.ListOrders(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if orders == nil {
		orders = []*order.Order{}
	}
	utils.WriteJSON(w, http.StatusOK, orders)
}

type statusRequest struct {
	Status string `json:"status"`
	Zone   string `json:"zone,omitempty"`
}

func (s *Server) adminOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	orderID := chi.URLParam(r, "orderID")
	if err := s.Admin.UpdateOrderStatus(r.Context(), orderID, req.Status); err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"order_id": orderID, "status": req.Status})
}

func (s *Server) adminDriverStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	driverID := chi.URLParam(r, "driverID")
	if err := s.Admin.UpdateDriverStatus(r.Context(), driverID, req.Status); err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"driver_id": driverID, "status": req.Status})
}

func (s *Server) adminDrivers(w http.ResponseWriter, r *http.Request) {
	drivers, err := s.Delivery.Drivers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if drivers == nil {
		drivers = []*delivery.Driver{}
	}
	utils.WriteJSON(w, http.StatusOK, drivers)
}

type driverRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	CurrentZone string `json:"current_zone"`
}

func (s *Server) adminRegisterDriver(w http.ResponseWriter, r *http.Request) {
	var req driverRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	d := &delivery.Driver{ID: req.ID, Name: req.Name, CurrentZone: req.CurrentZone}
	if err := s.Delivery.RegisterDriver(r.Context(), d); err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, d)
}

type assignRequest struct {
	DriverID string `json:"driver_id"`
}

func (s *Server) adminAssign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := utils.DecodeJSON(r, &req); err != nil || req.DriverID == "" {
		utils.WriteJSONError(w, "driver_id is required", http.StatusBadRequest)
		return
	}
	rec, err := s.Delivery.AssignDriver(r.Context(), chi.URLParam(r, "orderID"), req.DriverID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, rec)
}

// adminAdvance moves a delivery through the normal pipeline, unlike the
// status override.
func (s *Server) adminAdvance(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	st, err := delivery.ParseStatus(req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := s.Delivery.Advance(r.Context(), chi.URLParam(r, "orderID"), st, req.Zone)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, rec)
}

type burnRequest struct {
	Recipients []string `json:"recipients"`
}

// BurnCutoffHeader carries the export's cutoff, which the wipe call must
// echo back.
const BurnCutoffHeader = "X-Burn-Cutoff"

// adminBurn returns the encrypted export as a download. The export is
// buffered so a failure can still be reported as JSON. Nothing is deleted
// here; see adminWipe.
func (s *Server) adminBurn(w http.ResponseWriter, r *http.Request) {
	var req burnRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	recipients, err := admin.ParseRecipients(req.Recipients)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	report, err := s.Admin.Export(r.Context(), &buf, recipients)
	if err != nil {
		writeError(w, r, err)
		return
	}

	name := utils.GenerateExportName("burn", ".zst.age")
	h := w.Header()
	h.Set("Content-Type", "application/octet-stream")
	h.Set("Content-Disposition", `attachment; filename="`+name+`"`)
	h.Set("Content-Length", strconv.Itoa(buf.Len()))
	h.Set("X-Burn-Orders", strconv.Itoa(report.Orders))
	if report.Cutoff != nil {
		h.Set(BurnCutoffHeader, report.Cutoff.UTC().Format(time.RFC3339Nano))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := buf.WriteTo(w); err != nil {
		logger.FromCtx(r.Context()).Warn("burn export not delivered",
			zap.String("layer", "http"),
			zap.Int("orders", report.Orders),
			zap.Error(err),
		)
	}
}

type wipeRequest struct {
	Cutoff *time.Time `json:"cutoff"`
}

type wipeResponse struct {
	Wiped int64 `json:"wiped"`
}

// adminWipe deletes the orders covered by an export the caller already
// holds, identified by the cutoff adminBurn returned.
func (s *Server) adminWipe(w http.ResponseWriter, r *http.Request) {
	var req wipeRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Cutoff == nil {
		writeError(w, r, admin.ErrInvalidCutoff)
		return
	}

	n, err := s.Admin.Wipe(r.Context(), *req.Cutoff)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, wipeResponse{Wiped: n})
}
