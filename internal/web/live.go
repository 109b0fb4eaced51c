package web

import (
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/websocket"

	"gosniff/internal/analysis"
	"gosniff/internal/capture"
	"gosniff/internal/models"
)

// liveEvent is one websocket frame on /api/live. Type selects the payload:
// "packet" carries Packet, "stats" carries Stats and Status.
type liveEvent struct {
	Type   string               `json:"type"` // "packet" or "stats"
	Packet *models.PacketRecord `json:"packet,omitempty"`
	Stats  *analysis.Stats      `json:"stats,omitempty"`
	Status *capture.Status      `json:"status,omitempty"`
}

// handleLive streams new records to one viewer. Each connection gets its own
// fan-out subscription, so viewers never compete for records, and a stats
// frame is pushed periodically.
func (s *Server) handleLive(ws *websocket.Conn) {
	defer ws.Close()

	records, cancel := s.session.Subscribe()
	defer cancel()

	s.logger.Debug("live viewer connected", zap.String("remote", ws.Request().RemoteAddr))
	defer s.logger.Debug("live viewer disconnected", zap.String("remote", ws.Request().RemoteAddr))

	// Drain client frames solely to notice disconnects.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		var discard string
		for {
			if err := websocket.Message.Receive(ws, &discard); err != nil {
				return
			}
		}
	}()

	if err := s.sendStats(ws); err != nil {
		return
	}

	ticker := time.NewTicker(statsPushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-clientGone:
			return
		case rec, ok := <-records:
			if !ok {
				return
			}
			if err := websocket.JSON.Send(ws, liveEvent{Type: "packet", Packet: &rec}); err != nil {
				return
			}
		case <-ticker.C:
			if err := s.sendStats(ws); err != nil {
				return
			}
		}
	}
}

func (s *Server) sendStats(ws *websocket.Conn) error {
	stats := s.session.Stats()
	status := s.session.Status()
	return websocket.JSON.Send(ws, liveEvent{Type: "stats", Stats: &stats, Status: &status})
}
