package httptransport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/justQrius/companion-network-sub000/internal/domain"
	dErrors "github.com/justQrius/companion-network-sub000/pkg/domain-errors"
	"github.com/justQrius/companion-network-sub000/pkg/platform/httputil"
)

// HandleActivity serves the network activity monitor feed. An optional
// since query parameter (wire instant format) filters older events.
func (h *Handler) HandleActivity(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := domain.ParseInstant(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		since = parsed
	}

	feed, err := h.audit.List(r.Context(), since)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, feed)
}

// HandleListProposals returns the principal's proposal ledger.
func (h *Handler) HandleListProposals(w http.ResponseWriter, r *http.Request) {
	proposals, err := h.svc.Proposals(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"proposals": proposals})
}

type confirmRequest struct {
	Status string `json:"status"`
}

// HandleConfirmProposal applies the owner's decision to a pending proposal.
func (h *Handler) HandleConfirmProposal(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "malformed request body"))
		return
	}

	result, err := h.svc.ConfirmProposal(r.Context(), eventID, req.Status)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleDrainNotifications returns and clears the pending notification
// queue.
func (h *Handler) HandleDrainNotifications(w http.ResponseWriter, r *http.Request) {
	messages, err := h.svc.DrainNotifications(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if messages == nil {
		messages = []string{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

type coordinateRequest struct {
	Timeframe       string `json:"timeframe"`
	EventType       string `json:"event_type"`
	DurationMinutes int    `json:"duration_minutes"`
}

// HandleCoordinate runs one negotiation round with the peer on the owner's
// behalf.
func (h *Handler) HandleCoordinate(w http.ResponseWriter, r *http.Request) {
	var req coordinateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "malformed request body"))
		return
	}
	if req.Timeframe == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "timeframe must be a non-empty string"))
		return
	}
	if req.DurationMinutes <= 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "duration_minutes must be a positive integer"))
		return
	}

	outcome, err := h.coordinator.CoordinateAvailability(r.Context(), req.Timeframe, req.EventType, req.DurationMinutes)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, outcome)
}
