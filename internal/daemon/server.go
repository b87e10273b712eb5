package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/runger/suggestd/internal/config"
	"github.com/runger/suggestd/internal/engine"
	"github.com/runger/suggestd/internal/transport"
)

// Version is set at build time.
var Version = "dev"

// maxRequestLine bounds one protocol line. Queries are short; anything
// bigger is a confused or hostile client.
const maxRequestLine = 64 * 1024

// ServerConfig contains configuration options for the daemon server.
type ServerConfig struct {
	// Manager is the suggestion engine (required).
	Manager *engine.Manager

	// SocketPath is the Unix socket to listen on (required).
	SocketPath string

	// Paths is the path configuration (optional, uses defaults if nil).
	Paths *config.Paths

	// Logger is the structured logger (optional, uses default if nil).
	Logger *slog.Logger

	// IdleTimeout is the duration after which the daemon exits if no
	// client is connected. 0 disables idle shutdown.
	IdleTimeout time.Duration

	// ReloadFn is called on SIGHUP to reload configuration.
	// If nil, SIGHUP is ignored.
	ReloadFn ReloadFunc
}

// Server accepts client connections and routes their requests to the
// engine. Each connection owns at most one live cursor.
type Server struct {
	manager    *engine.Manager
	socketPath string
	paths      *config.Paths
	logger     *slog.Logger

	listener net.Listener

	startTime    time.Time
	idleTimeout  time.Duration
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup

	mu           sync.Mutex
	lastActivity time.Time
	conns        map[string]net.Conn
}

// NewServer creates a new daemon server with the given configuration.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Manager == nil {
		return nil, fmt.Errorf("manager is required")
	}
	if cfg.SocketPath == "" {
		return nil, fmt.Errorf("socket path is required")
	}

	paths := cfg.Paths
	if paths == nil {
		paths = config.DefaultPaths()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := time.Now()
	return &Server{
		manager:      cfg.Manager,
		socketPath:   cfg.SocketPath,
		paths:        paths,
		logger:       logger,
		startTime:    now,
		lastActivity: now,
		idleTimeout:  cfg.IdleTimeout,
		shutdownChan: make(chan struct{}),
		conns:        make(map[string]net.Conn),
	}, nil
}

// Start listens on the Unix socket and serves until the context is
// canceled or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	listener, err := transport.Listen(s.socketPath)
	if err != nil {
		return err
	}
	s.listener = listener

	s.logger.Info("daemon starting",
		"socket", s.socketPath,
		"pid", os.Getpid(),
		"version", Version,
	)

	if s.idleTimeout > 0 {
		s.wg.Add(1)
		go s.watchIdle(ctx)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.acceptLoop()
	}()

	select {
	case <-ctx.Done():
		s.Shutdown()
		<-errChan
		return nil
	case err := <-errChan:
		return err
	}
}

// acceptLoop hands each connection to its own goroutine.
func (s *Server) acceptLoop() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdownChan:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		id := uuid.NewString()
		s.mu.Lock()
		s.conns[id] = conn
		s.lastActivity = time.Now()
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(id, conn)
		}()
	}
}

// handleConn serves one client. The connection's cursor is closed with
// an unattributable view when the client disappears without saying
// goodbye.
func (s *Server) handleConn(id string, conn net.Conn) {
	logger := s.logger.With("conn", id)
	logger.Debug("client connected")

	var cursor *engine.Cursor
	defer func() {
		if cursor != nil {
			cursor.PreClose(-1)
		}
		conn.Close()
		s.mu.Lock()
		delete(s.conns, id)
		s.lastActivity = time.Now()
		s.mu.Unlock()
		logger.Debug("client disconnected")
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 4096), maxRequestLine)
	enc := json.NewEncoder(conn)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		s.touchActivity()

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			if writeErr := enc.Encode(errorResponse("malformed request: " + err.Error())); writeErr != nil {
				return
			}
			continue
		}

		resp := s.handle(&req, &cursor, logger)
		if err := enc.Encode(resp); err != nil {
			logger.Warn("failed to write response", "error", err)
			return
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		logger.Debug("connection read error", "error", err)
	}
}

// handle executes one request against the connection's cursor.
func (s *Server) handle(req *Request, cursor **engine.Cursor, logger *slog.Logger) *Response {
	switch req.Op {
	case OpQuery:
		// A new query supersedes the previous cursor; the client had no
		// chance to attribute views on the old one.
		if *cursor != nil {
			(*cursor).PreClose(-1)
			*cursor = nil
		}
		c := s.manager.Query(req.Query)
		if c == nil {
			return errorResponse("engine is shut down")
		}
		*cursor = c
		logger.Debug("query started", "query", req.Query)
		return s.frameResponse(c, -1)

	case OpRefresh:
		c := *cursor
		if c == nil {
			return errorResponse("no active query")
		}
		_, notifyIndex := c.PostRefresh()
		return s.frameResponse(c, notifyIndex)

	case OpClick:
		c := *cursor
		if c == nil {
			return errorResponse("no active query")
		}
		reselect := c.Click(req.Position)
		resp := s.frameResponse(c, -1)
		resp.Reselect = reselect
		return resp

	case OpMoreVisible:
		c := *cursor
		if c == nil {
			return errorResponse("no active query")
		}
		c.ThreshHit()
		return okResponse()

	case OpClose:
		c := *cursor
		if c == nil {
			return errorResponse("no active query")
		}
		c.PreClose(req.MaxDisplayPos)
		*cursor = nil
		return okResponse()

	case OpStatus:
		return s.statusResponse()

	default:
		return errorResponse(fmt.Sprintf("unknown operation: %q", req.Op))
	}
}

func (s *Server) frameResponse(c *engine.Cursor, notifyIndex int) *Response {
	f := c.Frame()
	return &Response{
		OK:          true,
		Frame:       wireFrame(f.Items, f.IsPending, f.MoreIndex, f.ShowingMore),
		NotifyIndex: notifyIndex,
		Reselect:    -1,
	}
}

func (s *Server) statusResponse() *Response {
	s.mu.Lock()
	connections := len(s.conns)
	s.mu.Unlock()

	sources := s.manager.SourceIDs()
	names := make([]string, len(sources))
	for i, id := range sources {
		names[i] = string(id)
	}

	return &Response{
		OK:          true,
		NotifyIndex: -1,
		Reselect:    -1,
		Status: &Status{
			PID:         os.Getpid(),
			Version:     Version,
			UptimeSecs:  int64(time.Since(s.startTime).Seconds()),
			Connections: connections,
			Sources:     names,
		},
	}
}

func okResponse() *Response {
	return &Response{OK: true, NotifyIndex: -1, Reselect: -1}
}

func errorResponse(msg string) *Response {
	return &Response{Error: msg, NotifyIndex: -1, Reselect: -1}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.logger.Info("daemon shutting down")

		close(s.shutdownChan)

		if s.listener != nil {
			s.listener.Close()
		}

		// Unblock connection handlers stuck in reads.
		s.mu.Lock()
		for _, conn := range s.conns {
			conn.Close()
		}
		s.mu.Unlock()

		s.wg.Wait()
		s.manager.Close()

		if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to remove socket", "path", s.socketPath, "error", err)
		}

		s.logger.Info("daemon stopped")
	})
}

// touchActivity updates the last activity timestamp.
func (s *Server) touchActivity() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// getLastActivity returns the last activity timestamp.
func (s *Server) getLastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// activeConns returns the number of connected clients.
func (s *Server) activeConns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// watchIdle monitors for idle timeout and initiates shutdown.
func (s *Server) watchIdle(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdownChan:
			return
		case <-ticker.C:
			if s.activeConns() == 0 {
				since := time.Since(s.getLastActivity())
				if since > s.idleTimeout {
					s.logger.Info("idle timeout reached",
						"idle_duration", since,
						"timeout", s.idleTimeout,
					)
					go s.Shutdown()
					return
				}
			}
		}
	}
}
