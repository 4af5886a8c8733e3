// ABOUTME: TUI update helpers for server
// ABOUTME: Periodically sends session state to the TUI
package server

import (
	"context"
	"time"
)

// refreshTUI pushes server state to the TUI every second until ctx ends
func (s *Server) refreshTUI(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		s.updateTUI()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// updateTUI sends current server state to TUI
func (s *Server) updateTUI() {
	s.shutdownMu.RLock()
	defer s.shutdownMu.RUnlock()
	if s.tui == nil || s.isShutdown {
		return
	}

	status := ServerStatus{
		Name:     s.config.Name,
		Port:     s.port,
		Title:    "no clients",
		Sessions: s.Sessions(),
	}

	s.sessionsMu.RLock()
	for _, sess := range s.sessions {
		status.Title = sess.info.Title
		status.Frames = sess.info.FrameCount
		status.FPS = sess.info.FPS
		break
	}
	s.sessionsMu.RUnlock()

	s.tui.Update(status)
}
