// ABOUTME: MVX frame stream server
// ABOUTME: Accepts websocket clients and streams each one its own paced frame source
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/mvxplay/mvxplay-go/internal/discovery"
	"github.com/mvxplay/mvxplay-go/internal/observe"
	"github.com/mvxplay/mvxplay-go/pkg/mvx"
)

const (
	// StreamPath is where clients connect
	StreamPath = discovery.DefaultPath

	// DefaultLead is how far ahead of real time frames are sent
	DefaultLead = 500 * time.Millisecond

	// HandshakeTimeout bounds the wait for client/hello
	HandshakeTimeout = 5 * time.Second

	writeDeadline   = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

// SourceFunc opens a fresh source for one client
type SourceFunc func() (mvx.Source, error)

// Config holds server configuration
type Config struct {
	Addr       string // listen address, e.g. ":8928"
	Name       string
	EnableMDNS bool
	UseTUI     bool

	// Lead is how far ahead of real time frames are sent (default: DefaultLead)
	Lead time.Duration

	// Open creates the source streamed to each client
	Open SourceFunc

	// Metrics records session activity (default: observe.DefaultMetrics())
	Metrics *observe.Metrics
}

// Server represents the MVX frame server
type Server struct {
	config   Config
	serverID string
	upgrader websocket.Upgrader
	mux      *http.ServeMux
	metrics  *observe.Metrics

	sessions   map[string]*session
	sessionsMu sync.RWMutex

	mdnsManager *discovery.Manager
	tui         *ServerTUI
	port        int

	shutdownMu sync.RWMutex
	isShutdown bool
	wg         sync.WaitGroup
}

// New creates a new server instance
func New(config Config) (*Server, error) {
	if config.Open == nil {
		return nil, errors.New("server config needs a source")
	}
	if config.Addr == "" {
		config.Addr = ":8928"
	}
	if config.Name == "" {
		config.Name = "mvx-serve"
	}
	if config.Lead == 0 {
		config.Lead = DefaultLead
	}
	if config.Metrics == nil {
		config.Metrics = observe.DefaultMetrics()
	}

	s := &Server{
		config:   config,
		serverID: uuid.New().String(),
		mux:      http.NewServeMux(),
		metrics:  config.Metrics,
		sessions: make(map[string]*session),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// players are native clients on a trusted network
				return true
			},
		},
	}
	s.mux.HandleFunc(StreamPath, s.handleWebSocket)
	return s, nil
}

// Handler returns the HTTP handler serving the stream endpoint
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves until ctx is cancelled or the TUI asks to quit
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	s.port = ln.Addr().(*net.TCPAddr).Port

	log.Printf("Server starting: %s (ID: %s)", s.config.Name, s.serverID)

	if s.config.UseTUI {
		s.tui = NewServerTUI(s.config.Name, s.port)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.tui.Start(); err != nil {
				log.Printf("TUI error: %v", err)
			}
		}()
		go s.refreshTUI(ctx)
	}

	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        s.port,
			Path:        StreamPath,
		})
		if err := s.mdnsManager.Advertise(); err != nil {
			log.Printf("Failed to start mDNS advertisement: %v", err)
		} else {
			log.Printf("mDNS advertisement started")
		}
	}

	httpServer := &http.Server{Handler: s.mux}
	log.Printf("WebSocket server listening on %s%s", ln.Addr(), StreamPath)

	var tuiQuit <-chan struct{}
	if s.tui != nil {
		tuiQuit = s.tui.QuitChan()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
			log.Printf("Server shutting down...")
		case <-tuiQuit:
			log.Printf("TUI quit requested, shutting down...")
		}
		s.shutdown(httpServer)
		return nil
	})

	err = g.Wait()
	s.wg.Wait()
	log.Printf("Server stopped cleanly")
	return err
}

func (s *Server) shutdown(httpServer *http.Server) {
	s.shutdownMu.Lock()
	s.isShutdown = true
	s.shutdownMu.Unlock()

	if s.tui != nil {
		s.tui.Stop()
	}
	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	// hijacked websocket connections are not closed by Shutdown
	s.sessionsMu.RLock()
	for _, sess := range s.sessions {
		sess.close()
	}
	s.sessionsMu.RUnlock()
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.shutdownMu.RLock()
	if s.isShutdown {
		s.shutdownMu.RUnlock()
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	s.wg.Add(1)
	s.shutdownMu.RUnlock()
	defer s.wg.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := observe.StartSpan(ctx, "mvx.session",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("net.peer.addr", r.RemoteAddr)),
	)
	defer span.End()

	log.Printf("New WebSocket connection from %s (trace %s)", r.RemoteAddr, observe.CorrelationID(ctx))
	s.handleConnection(ctx, conn)
}

// SessionInfo describes a connected client
type SessionInfo struct {
	ID        string
	ClientID  string
	Name      string
	Frame     int
	Sent      int64
	Connected time.Duration
}

// Sessions returns the connected clients ordered by connection time
func (s *Server) Sessions() []SessionInfo {
	s.sessionsMu.RLock()
	out := make([]SessionInfo, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.snapshot())
	}
	s.sessionsMu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Connected > out[j].Connected })
	return out
}

// register adds sess unless its client is already connected
func (s *Server) register(sess *session) bool {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()

	for _, other := range s.sessions {
		if other.clientID == sess.clientID {
			return false
		}
	}
	s.sessions[sess.id] = sess
	s.metrics.ActiveSessions.Add(context.Background(), 1)
	return true
}

func (s *Server) unregister(sess *session) {
	s.sessionsMu.Lock()
	delete(s.sessions, sess.id)
	s.sessionsMu.Unlock()

	ctx := context.Background()
	s.metrics.ActiveSessions.Add(ctx, -1)
	s.metrics.SessionDuration.Record(ctx, time.Since(sess.started).Seconds())
}
