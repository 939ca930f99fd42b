// Package live provides the WebSocket feed that mirrors store events to
// connected clients: task changes, tag changes, schedule syncs, and
// integrity reports. The feed is read-only; clients cannot mutate state
// through it.
package live

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/k-iizuka000/ai-todo-sub002/internal/events"
	"github.com/k-iizuka000/ai-todo-sub002/internal/types"
)

// MessageType classifies a feed message.
type MessageType string

const (
	MessageTaskUpdate      MessageType = "task_update"
	MessageTagUpdate       MessageType = "tag_update"
	MessageScheduleSync    MessageType = "schedule_sync"
	MessageIntegrityReport MessageType = "integrity_report"
)

// Message is one feed frame.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// TaskUpdateData describes a task mutation.
type TaskUpdateData struct {
	TaskID string `json:"task_id"`
	Action string `json:"action"` // created, updated, deleted
}

// TagUpdateData describes a tag mutation.
type TagUpdateData struct {
	TagID   string `json:"tag_id"`
	Deleted bool   `json:"deleted"`
	Name    string `json:"name,omitempty"`
	Color   string `json:"color,omitempty"`
}

// IntegrityReportData carries the issues from one monitoring cycle.
type IntegrityReportData struct {
	Issues []types.IntegrityIssue `json:"issues"`
}

// Config configures the feed server.
type Config struct {
	// Addr is the listen address, e.g. ":8787".
	Addr string

	// Bus, if set, is mirrored onto the feed automatically.
	Bus *events.Bus

	Logger *log.Logger
}

// Server accepts WebSocket clients on /ws and broadcasts feed messages.
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server

	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex

	broadcast chan Message

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	unsubs []func()

	logger *log.Logger
}

// NewServer creates a stopped feed server.
func NewServer(config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[live] ", log.LstdFlags)
	}
	addr := config.Addr
	if addr == "" {
		addr = ":8787"
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		addr:      addr,
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Message, 100),
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger,
	}

	if config.Bus != nil {
		s.subscribe(config.Bus)
	}
	return s
}

// subscribe mirrors bus events onto the feed.
func (s *Server) subscribe(bus *events.Bus) {
	s.unsubs = append(s.unsubs,
		bus.Subscribe(events.TaskChanged, func(ev events.Event) {
			s.publish(MessageTaskUpdate, TaskUpdateData{TaskID: ev.TaskID, Action: ev.Action})
		}),
		bus.Subscribe(events.TagUpdated, func(ev events.Event) {
			data := TagUpdateData{TagID: ev.TagID}
			if ev.Tag != nil {
				data.Name = ev.Tag.Name
				data.Color = ev.Tag.Color
			}
			s.publish(MessageTagUpdate, data)
		}),
		bus.Subscribe(events.TagDeleted, func(ev events.Event) {
			s.publish(MessageTagUpdate, TagUpdateData{TagID: ev.TagID, Deleted: true})
		}),
		bus.Subscribe(events.ScheduleSynced, func(events.Event) {
			s.publish(MessageScheduleSync, nil)
		}),
		bus.Subscribe(events.IntegrityReport, func(ev events.Event) {
			s.publish(MessageIntegrityReport, IntegrityReportData{Issues: ev.Issues})
		}),
	)
}

// publish encodes the payload and enqueues the frame.
func (s *Server) publish(t MessageType, data any) {
	msg := Message{Type: t, Timestamp: time.Now()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			s.logger.Printf("Failed to encode %s payload: %v", t, err)
			return
		}
		msg.Data = raw
	}
	s.Broadcast(msg)
}

// Start begins listening and broadcasting.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go s.broadcastLoop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("Live feed listening on %s", ln.Addr())
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("Feed server error: %v", err)
		}
	}()

	return nil
}

// Stop unsubscribes from the bus, closes clients, and shuts the server down.
func (s *Server) Stop() error {
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.unsubs = nil

	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("feed shutdown error: %w", err)
		}
	}

	s.wg.Wait()
	return nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// Broadcast enqueues a frame for every connected client. Frames are dropped
// rather than blocking when the queue is full.
func (s *Server) Broadcast(msg Message) {
	select {
	case s.broadcast <- msg:
	case <-s.ctx.Done():
	default:
		s.logger.Printf("Broadcast queue full, dropping %s frame", msg.Type)
	}
}

func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case msg := <-s.broadcast:
			if msg.Timestamp.IsZero() {
				msg.Timestamp = time.Now()
			}
			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Printf("Failed to marshal frame: %v", err)
				continue
			}

			s.clientsMu.RLock()
			conns := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				conns = append(conns, conn)
			}
			s.clientsMu.RUnlock()

			for _, conn := range conns {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()
				if err != nil {
					s.removeClient(conn)
				}
			}
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	count := len(s.clients)
	s.clientsMu.Unlock()
	s.logger.Printf("Feed client connected (total %d)", count)

	go s.readLoop(conn)
}

// readLoop drains client frames so pings are answered; client messages are
// otherwise ignored.
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)
	for {
		if _, _, err := conn.Read(s.ctx); err != nil {
			return
		}
	}
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	_, exists := s.clients[conn]
	if exists {
		delete(s.clients, conn)
	}
	count := len(s.clients)
	s.clientsMu.Unlock()

	if exists {
		_ = conn.Close(websocket.StatusNormalClosure, "")
		s.logger.Printf("Feed client disconnected (total %d)", count)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.clientsMu.RLock()
	count := len(s.clients)
	s.clientsMu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"clients": count,
	})
}
