package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"

	"fundambush/internal/analyzer"
	"fundambush/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Reports carry no per-user state; the endpoint is origin-agnostic.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ScanHandler streams a watchlist scan over a websocket: one progress
// frame per stock, then a closing summary frame.
type ScanHandler struct {
	service   *analyzer.Service
	watchlist []string
	logger    *logger.Logger
}

// NewScanHandler creates the handler over the configured watchlist.
func NewScanHandler(service *analyzer.Service, watchlist []string, log *logger.Logger) *ScanHandler {
	return &ScanHandler{service: service, watchlist: watchlist, logger: log}
}

type scanSummary struct {
	Done    bool     `json:"done"`
	Scanned int      `json:"scanned"`
	Hits    []string `json:"hits"`
	Error   string   `json:"error,omitempty"`
}

// Stream upgrades the connection and runs the scan, pushing progress as
// it goes. GET /ws/scan
func (h *ScanHandler) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	if len(h.watchlist) == 0 {
		conn.WriteJSON(scanSummary{Done: true, Error: "watchlist is empty"})
		return
	}

	ctx := r.Context()
	hits, err := h.service.Scan(ctx, h.watchlist, func(p analyzer.ScanProgress) {
		if writeErr := conn.WriteJSON(p); writeErr != nil {
			h.logger.WithError(writeErr).Debug("scan progress write failed, client likely gone")
		}
	})

	summary := scanSummary{Done: true, Scanned: len(h.watchlist)}
	if err != nil {
		summary.Error = err.Error()
	}
	for _, hit := range hits {
		summary.Hits = append(summary.Hits, hit.Code)
	}
	if writeErr := conn.WriteJSON(summary); writeErr != nil {
		h.logger.WithError(writeErr).Debug("scan summary write failed")
	}
}
