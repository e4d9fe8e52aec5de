package gateway

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sagebridge/sagebridge/internal/config"
	"github.com/sagebridge/sagebridge/internal/domain"
	"github.com/sagebridge/sagebridge/internal/logging"
	"github.com/sagebridge/sagebridge/internal/version"
)

const (
	defaultPort    = 8790
	maxPayloadSize = 4 * 1024 * 1024
)

// client is one connected WebSocket peer. Writes are serialized through
// its own mutex; gorilla/websocket allows one concurrent writer only.
type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// Server is the gateway WebSocket server. It implements domain.Channel:
// every connected client shares the bridge, and replies fan out to all
// clients attached to the target chat.
type Server struct {
	cfg      config.GatewayConfig
	log      *logging.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*client // conn id -> client
	chats   map[string]string  // conn id -> chat id
	handler func(msg domain.InboundMessage)
	running bool

	httpServer *http.Server
}

// New creates a gateway server.
func New(cfg config.GatewayConfig, log *logging.Logger) *Server {
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	return &Server{
		cfg:     cfg,
		log:     log.Sub("gateway"),
		clients: make(map[string]*client),
		chats:   make(map[string]string),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

func (s *Server) ID() string { return "gateway" }

func (s *Server) OnMessage(handler func(msg domain.InboundMessage)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
}

// Status returns the current runtime status.
func (s *Server) Status() domain.ChannelStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.ChannelStatus{
		ChannelID: "gateway",
		Connected: len(s.clients) > 0,
		Running:   s.running,
	}
}

// Start listens on the configured loopback port. It blocks until the
// context is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("127.0.0.1:%d", s.cfg.Port)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/healthz", s.handleHealthz)

	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
		BaseContext: func(l net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("gateway listen on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Bool("auth", s.cfg.Token != "").
		Msg("gateway listening")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the HTTP server down and drops all clients.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.running = false
	for id, c := range s.clients {
		c.conn.Close()
		delete(s.clients, id)
		delete(s.chats, id)
	}
	srv := s.httpServer
	s.mu.Unlock()

	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

// Send delivers a reply frame to every client attached to the target chat.
func (s *Server) Send(ctx context.Context, msg domain.OutboundMessage) error {
	frames := make([]Frame, 0, 1+len(msg.Media))
	if msg.Body != "" {
		frames = append(frames, Frame{Type: FrameReply, ChatID: msg.To, Body: msg.Body})
	}
	for _, att := range msg.Media {
		frames = append(frames, Frame{
			Type:     FrameReply,
			ChatID:   msg.To,
			Filename: att.Filename,
			Data:     att.Data,
		})
	}

	s.mu.RLock()
	targets := make([]*client, 0, len(s.clients))
	for id, c := range s.clients {
		if s.chats[id] == msg.To {
			targets = append(targets, c)
		}
	}
	s.mu.RUnlock()

	if len(targets) == 0 {
		return fmt.Errorf("gateway: no client attached to chat %s", msg.To)
	}

	var errs []error
	for _, c := range targets {
		for _, f := range frames {
			if err := c.writeJSON(f); err != nil {
				errs = append(errs, err)
				break
			}
		}
	}
	return errors.Join(errs...)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"version": version.Version,
	})
}

func (s *Server) authorized(r *http.Request) bool {
	if s.cfg.Token == "" {
		return true
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		token = r.Header.Get("Authorization")
		token = trimBearer(token)
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.Token)) == 1
}

func trimBearer(s string) string {
	const prefix = "Bearer "
	if len(s) > len(prefix) && s[:len(prefix)] == prefix {
		return s[len(prefix):]
	}
	return s
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		s.log.Warn().Str("remote", r.RemoteAddr).Msg("rejected unauthorized connection")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxPayloadSize)

	connID := uuid.New().String()
	c := &client{conn: conn}
	s.mu.Lock()
	s.clients[connID] = c
	s.mu.Unlock()

	s.log.Debug().Str("connId", connID).Str("remote", r.RemoteAddr).Msg("client connected")

	defer func() {
		s.mu.Lock()
		delete(s.clients, connID)
		delete(s.chats, connID)
		s.mu.Unlock()
		conn.Close()
		s.log.Debug().Str("connId", connID).Msg("client disconnected")
	}()

	s.readLoop(connID, c)
}

func (s *Server) readLoop(connID string, c *client) {
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn().Err(err).Str("connId", connID).Msg("read error")
			}
			return
		}

		frame, err := ParseFrame(raw)
		if err != nil {
			c.writeJSON(errorFrame(err.Error()))
			continue
		}

		// Remember which chat this connection speaks for so replies can
		// find their way back.
		s.mu.Lock()
		s.chats[connID] = frame.ChatID
		handler := s.handler
		s.mu.Unlock()

		if handler == nil {
			c.writeJSON(errorFrame("gateway is not wired to a router"))
			continue
		}

		// Replies are routed by chat id, so the frame's chat behaves like
		// a group target even for a single client.
		msg := domain.InboundMessage{
			ID:        uuid.New().String(),
			ChannelID: "gateway",
			From:      frame.From,
			FromName:  frame.From,
			ChatID:    frame.ChatID,
			ChatType:  domain.ChatTypeGroup,
			Body:      frame.Body,
			Timestamp: time.Now(),
		}
		if len(frame.Data) > 0 {
			msg.Media = append(msg.Media, domain.Attachment{
				Filename: frame.Filename,
				Data:     frame.Data,
				Size:     int64(len(frame.Data)),
			})
		}
		handler(msg)
	}
}

var _ domain.Channel = (*Server)(nil)
