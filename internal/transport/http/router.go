// Package httptransport is the thin HTTP layer: JSON-RPC 2.0 framing for
// peer calls, plus owner-side REST endpoints. It delegates to domain
// services without embedding business logic so transport concerns remain
// isolated.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/justQrius/companion-network-sub000/internal/audit"
	"github.com/justQrius/companion-network-sub000/internal/companion"
	"github.com/justQrius/companion-network-sub000/pkg/platform/httputil"
)

// Handler carries the transport dependencies.
type Handler struct {
	svc         *companion.Service
	coordinator *companion.Coordinator
	audit       *audit.Log
	logger      *slog.Logger
}

// NewHandler constructs the HTTP handler.
func NewHandler(svc *companion.Service, coordinator *companion.Coordinator, auditLog *audit.Log, logger *slog.Logger) *Handler {
	return &Handler{
		svc:         svc,
		coordinator: coordinator,
		audit:       auditLog,
		logger:      logger,
	}
}

// NewRouter wires all endpoints. /run is the peer-facing JSON-RPC
// endpoint; the rest serve the owner and operators.
func NewRouter(h *Handler, reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/run", h.HandleRun)
	r.Get("/activity", h.HandleActivity)

	r.Get("/proposals", h.HandleListProposals)
	r.Post("/proposals/{eventID}/confirm", h.HandleConfirmProposal)
	r.Post("/notifications/drain", h.HandleDrainNotifications)
	r.Post("/coordinate", h.HandleCoordinate)

	r.Get("/healthz", h.HandleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return r
}

// HandleHealth reports liveness.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
