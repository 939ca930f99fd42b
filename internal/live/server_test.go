package live

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/k-iizuka000/ai-todo-sub002/internal/events"
	"github.com/k-iizuka000/ai-todo-sub002/internal/types"
)

func startTestServer(t *testing.T, bus *events.Bus) *Server {
	t.Helper()

	s := NewServer(Config{
		Addr:   "127.0.0.1:0",
		Bus:    bus,
		Logger: log.New(io.Discard, "", 0),
	})
	if err := s.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func dial(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+s.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial() failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })

	// Wait for the server to register the client before broadcasting.
	deadline := time.After(2 * time.Second)
	for s.ClientCount() == 0 {
		select {
		case <-deadline:
			t.Fatalf("client never registered")
		case <-time.After(5 * time.Millisecond):
		}
	}
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Read() failed: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("frame is not valid JSON: %v", err)
	}
	return msg
}

func TestHealthEndpoint(t *testing.T) {
	s := startTestServer(t, nil)

	resp, err := http.Get("http://" + s.Addr() + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Status  string `json:"status"`
		Clients int    `json:"clients"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode health body: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
}

func TestBroadcastReachesClient(t *testing.T) {
	s := startTestServer(t, nil)
	conn := dial(t, s)

	raw, _ := json.Marshal(TaskUpdateData{TaskID: "task-1", Action: "created"})
	s.Broadcast(Message{Type: MessageTaskUpdate, Data: raw})

	msg := readFrame(t, conn)
	if msg.Type != MessageTaskUpdate {
		t.Fatalf("Type = %s, want task_update", msg.Type)
	}
	var data TaskUpdateData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if data.TaskID != "task-1" || data.Action != "created" {
		t.Errorf("payload = %+v", data)
	}
	if msg.Timestamp.IsZero() {
		t.Errorf("frame should be timestamped")
	}
}

func TestBusEventsMirroredToFeed(t *testing.T) {
	bus := events.NewBus()
	s := startTestServer(t, bus)
	conn := dial(t, s)

	bus.Publish(events.Event{Type: events.TagDeleted, TagID: "tag-1"})

	msg := readFrame(t, conn)
	if msg.Type != MessageTagUpdate {
		t.Fatalf("Type = %s, want tag_update", msg.Type)
	}
	var data TagUpdateData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if data.TagID != "tag-1" || !data.Deleted {
		t.Errorf("payload = %+v, want deleted tag-1", data)
	}
}

func TestIntegrityReportFrame(t *testing.T) {
	bus := events.NewBus()
	s := startTestServer(t, bus)
	conn := dial(t, s)

	bus.Publish(events.Event{
		Type: events.IntegrityReport,
		Issues: []types.IntegrityIssue{
			{ID: "i1", Type: types.IssueTimestampAnomaly, Severity: types.SeverityLow},
		},
	})

	msg := readFrame(t, conn)
	if msg.Type != MessageIntegrityReport {
		t.Fatalf("Type = %s, want integrity_report", msg.Type)
	}
	var data IntegrityReportData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if len(data.Issues) != 1 || data.Issues[0].Type != types.IssueTimestampAnomaly {
		t.Errorf("payload = %+v", data)
	}
}

func TestStopUnsubscribesFromBus(t *testing.T) {
	bus := events.NewBus()
	s := startTestServer(t, bus)

	if got := bus.SubscriberCount(events.TaskChanged); got != 1 {
		t.Fatalf("SubscriberCount = %d, want 1 while running", got)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if got := bus.SubscriberCount(events.TaskChanged); got != 0 {
		t.Errorf("SubscriberCount = %d after stop, want 0", got)
	}
}
