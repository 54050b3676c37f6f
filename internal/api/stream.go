package api

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/orchestrator"
)

// Job event types. Round events reuse the orchestrator event names.
const (
	eventJobStarted   = "job_started"
	eventJobProgress  = "job_progress"
	eventJobCompleted = "job_completed"
	eventJobCancelled = "job_cancelled"
)

// StreamEvent describes websocket payloads emitted during rounds and batch jobs.
type StreamEvent struct {
	Type       string            `json:"type"`
	JobID      string            `json:"job_id,omitempty"`
	RoundID    string            `json:"round_id,omitempty"`
	Startup    string            `json:"startup,omitempty"`
	Total      int               `json:"total,omitempty"`
	Completed  int               `json:"completed,omitempty"`
	Failed     int               `json:"failed,omitempty"`
	Assessment *AssessmentDTO    `json:"assessment,omitempty"`
	Report     *ReportSummaryDTO `json:"report,omitempty"`
	Message    string            `json:"message,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// wsClient wraps a websocket connection with write locking.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// EvaluationNotifier keeps track of active websocket clients and broadcasts round and
// job events. It implements orchestrator.Observer.
type EvaluationNotifier struct {
	mu         sync.Mutex
	clients    map[*wsClient]struct{}
	lastStatus *StreamEvent
}

// NewEvaluationNotifier constructs a notifier instance.
func NewEvaluationNotifier() *EvaluationNotifier {
	return &EvaluationNotifier{clients: make(map[*wsClient]struct{})}
}

// OnEvent forwards orchestrator round events to websocket clients.
func (n *EvaluationNotifier) OnEvent(e orchestrator.Event) {
	event := StreamEvent{
		Type:      string(e.Type),
		RoundID:   e.RoundID,
		Startup:   e.Startup,
		Total:     e.Total,
		Completed: e.Completed,
		Message:   e.Message,
	}
	if e.Assessment != nil {
		dto := assessmentDTO(*e.Assessment)
		event.Assessment = &dto
	}
	if e.Report != nil {
		summary := SummaryFromReport(e.Report)
		event.Report = &summary
	}
	n.Broadcast(event)
}

// Register attaches a websocket connection and returns a client handle.
func (n *EvaluationNotifier) Register(conn *websocket.Conn) *wsClient {
	client := &wsClient{conn: conn}
	n.mu.Lock()
	n.clients[client] = struct{}{}
	status := n.lastStatus
	n.mu.Unlock()

	if status != nil {
		_ = client.writeJSON(*status)
	}
	return client
}

// Unregister removes the websocket client from the notifier and closes the socket.
func (n *EvaluationNotifier) Unregister(client *wsClient) {
	if client == nil {
		return
	}
	n.mu.Lock()
	delete(n.clients, client)
	n.mu.Unlock()
	_ = client.conn.Close()
}

// Broadcast sends the supplied event to all registered websocket clients.
func (n *EvaluationNotifier) Broadcast(event StreamEvent) {
	event.Timestamp = time.Now().UTC()

	n.mu.Lock()
	if event.Type != string(orchestrator.EventAssessment) {
		snapshot := event
		snapshot.Assessment = nil
		n.lastStatus = &snapshot
	}

	for client := range n.clients {
		if err := client.writeJSON(event); err != nil {
			delete(n.clients, client)
			_ = client.conn.Close()
		}
	}
	n.mu.Unlock()
}

// Clients returns the number of connected websocket clients.
func (n *EvaluationNotifier) Clients() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.clients)
}

func (c *wsClient) writeJSON(payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(payload)
}

// LastStatus returns the most recent non-assessment event.
func (n *EvaluationNotifier) LastStatus() *StreamEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.lastStatus == nil {
		return nil
	}
	copy := *n.lastStatus
	return &copy
}
