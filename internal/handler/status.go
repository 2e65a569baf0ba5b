package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/openclaw/bot-gateway-go/internal/httputil"
	"github.com/openclaw/bot-gateway-go/internal/service"
)

// StatusHandler exposes the operator-facing status surface: liveness
// plus a read-only view of the pairing state.
type StatusHandler struct {
	pairing   *service.PairingService
	rooms     *service.Rooms
	startedAt time.Time
}

func NewStatusHandler(pairing *service.PairingService, rooms *service.Rooms) *StatusHandler {
	return &StatusHandler{
		pairing:   pairing,
		rooms:     rooms,
		startedAt: time.Now(),
	}
}

func (h *StatusHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/health", h.Health)
	r.Get("/status", h.Status)
	return r
}

func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UnixMilli(),
	})
}

type ownerSummary struct {
	UserID     string    `json:"userId"`
	MainRoomID string    `json:"mainRoomId"`
	PairedAt   time.Time `json:"pairedAt"`
}

type statusResponse struct {
	Paired        bool          `json:"paired"`
	Owner         *ownerSummary `json:"owner,omitempty"`
	PendingCode   bool          `json:"pendingPairing"`
	Rooms         int           `json:"rooms"`
	UptimeSeconds int64         `json:"uptimeSeconds"`
}

func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Rooms:         h.rooms.Count(),
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
	}

	owner, err := h.pairing.Owner()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if owner != nil {
		resp.Paired = true
		resp.Owner = &ownerSummary{
			UserID:     owner.UserID,
			MainRoomID: owner.MainRoomID,
			PairedAt:   owner.PairedAt,
		}
	}

	pending, err := h.pairing.GetPendingPairing()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp.PendingCode = pending != nil

	httputil.WriteJSON(w, http.StatusOK, resp)
}
