package handlers

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/Werneck0live/controle-certidoes/internal/dashboard"
	"github.com/Werneck0live/controle-certidoes/internal/utils"
)

type DashboardLoader interface {
	Load(ctx context.Context, f dashboard.Filter) (dashboard.Summary, error)
}

type DashboardHandler struct {
	Svc DashboardLoader
}

func NewDashboardHandler(svc DashboardLoader) *DashboardHandler {
	return &DashboardHandler{Svc: svc}
}

// Page renderiza o HTML em "/".
func (h *DashboardHandler) Page(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	s, err := h.Svc.Load(ctx, dashboard.ParseFilter(r.URL.Query()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	// renderiza em buffer para não mandar HTML pela metade com status 200
	var buf bytes.Buffer
	if err := dashboard.Render(&buf, s); err != nil {
		slog.Error("dashboard_render_error", "err", err)
		http.Error(w, "render error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// JSON atende /api/dashboard com os mesmos filtros.
func (h *DashboardHandler) JSON(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	s, err := h.Svc.Load(ctx, dashboard.ParseFilter(r.URL.Query()))
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	utils.WriteJSON(w, http.StatusOK, s)
}
