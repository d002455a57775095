// Surface A: the streaming HTTP surface. The JSON-RPC dispatch and SSE
// framing are hand-rolled on net/http; only the data-shaped a2a types
// (AgentCard, Message, TextPart, Task, Artifact) and the two static
// agent-card helpers a2asrv exports are reused, since this server is a
// deterministic scoring engine, not an LLM-driven agent executor.
package surface

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"

	"github.com/sentinel-governance/sentinel/internal/model"
	"github.com/sentinel-governance/sentinel/internal/sentinelerr"
)

const (
	methodSendMessage   = "tasks/sendMessage"
	methodSendSubscribe = "tasks/sendSubscribe"

	// The A2A protocol renamed tasks/sendMessage and tasks/sendSubscribe to
	// message/send and message/stream in a later revision; accept both so a
	// client built against either naming works against this agent.
	methodMessageSend   = "message/send"
	methodMessageStream = "message/stream"
)

// progressUpdates is the ordered textual progress feed streamed before
// the verdict artifact; a final composite/decision summary follows it.
var progressUpdates = []string{
	"evaluating blast radius",
	"checking policy compliance",
	"querying historical incidents",
	"calculating financial impact",
}

// HTTPServer is Surface A: the streaming HTTP+SSE agent-to-agent surface.
type HTTPServer struct {
	facade      *Facade
	card        *a2a.AgentCard
	maxInFlight chan struct{}
	logger      *slog.Logger
}

// NewHTTPServer builds Surface A over facade. serverURL is advertised in
// the agent card; maxConcurrent bounds in-flight evaluations, defaulting
// to 64 when non-positive.
func NewHTTPServer(facade *Facade, serverURL string, maxConcurrent int) *HTTPServer {
	if maxConcurrent <= 0 {
		maxConcurrent = 64
	}
	card := &a2a.AgentCard{
		Name:        "sentinel-governance-agent",
		Description: "Computes the Sentinel Risk Index for a proposed infrastructure action and returns an approve/escalate/deny verdict.",
		Version:     "1.0.0",
		URL:         serverURL,
		PreferredTransport: a2a.TransportProtocolJSONRPC,
		Capabilities: a2a.AgentCapabilities{Streaming: true},
		Skills: []a2a.AgentSkill{
			{ID: "evaluate_action", Name: "Evaluate Action", Description: "Runs the governance pipeline against a proposed infrastructure action."},
			{ID: "query_decision_history", Name: "Query Decision History", Description: "Returns recent governance verdicts from the audit log."},
			{ID: "get_resource_risk_profile", Name: "Get Resource Risk Profile", Description: "Returns a resource's topology neighborhood plus its verdict history."},
		},
	}
	return &HTTPServer{
		facade:      facade,
		card:        card,
		maxInFlight: make(chan struct{}, maxConcurrent),
		logger:      slog.Default(),
	}
}

// Handler builds the net/http.Handler serving Surface A's three endpoints.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	cardHandler := a2asrv.NewStaticAgentCardHandler(s.card)
	mux.Handle("GET "+a2asrv.WellKnownAgentCardPath, cardHandler)
	mux.Handle("GET /.well-known/agent.json", cardHandler)
	mux.HandleFunc("POST /", s.handleJSONRPC)
	return mux
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      json.RawMessage `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

func (s *HTTPServer) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRPCError(w, nil, -32700, "parse error: "+err.Error())
		return
	}

	var params a2a.MessageSendParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		writeRPCError(w, req.ID, -32602, "invalid params: "+err.Error())
		return
	}

	action, err := parseAction(params.Message)
	if err != nil {
		writeRPCError(w, req.ID, -32602, "invalid params: "+err.Error())
		return
	}

	switch req.Method {
	case methodSendMessage, methodMessageSend:
		s.handleSendMessage(r.Context(), w, req.ID, action)
	case methodSendSubscribe, methodMessageStream:
		s.handleSendSubscribe(r.Context(), w, req.ID, action)
	default:
		writeRPCError(w, req.ID, -32601, "method not found: "+req.Method)
	}
}

// acquire admits one in-flight evaluation, or reports the surface is at
// capacity.
func (s *HTTPServer) acquire() (release func(), limited error) {
	select {
	case s.maxInFlight <- struct{}{}:
		return func() { <-s.maxInFlight }, nil
	default:
		return nil, &sentinelerr.RateLimitedError{Limit: cap(s.maxInFlight)}
	}
}

func (s *HTTPServer) handleSendMessage(ctx context.Context, w http.ResponseWriter, id json.RawMessage, action *model.ProposedAction) {
	release, limited := s.acquire()
	if limited != nil {
		writeRPCError(w, id, -32000, limited.Error())
		return
	}
	defer release()

	verdict, err := s.facade.EvaluateAction(ctx, action)
	if err != nil {
		writeRPCError(w, id, -32000, err.Error())
		return
	}

	task := verdictTask(verdict)
	writeRPCResult(w, id, task)
}

func (s *HTTPServer) handleSendSubscribe(ctx context.Context, w http.ResponseWriter, id json.RawMessage, action *model.ProposedAction) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeRPCError(w, id, -32000, "streaming unsupported by this response writer")
		return
	}

	release, limited := s.acquire()
	if limited != nil {
		writeRPCError(w, id, -32000, limited.Error())
		return
	}
	defer release()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for _, text := range progressUpdates {
		writeSSEEvent(w, "status", statusEvent{Text: text})
		flusher.Flush()
	}

	verdict, err := s.facade.EvaluateAction(ctx, action)
	if err != nil {
		writeSSEEvent(w, "error", rpcError{Code: -32000, Message: err.Error()})
		flusher.Flush()
		return
	}

	writeSSEEvent(w, "status", statusEvent{Text: fmt.Sprintf("SRI Composite: %.1f → %s", verdict.SRI.Composite, strings.ToUpper(string(verdict.Decision)))})
	flusher.Flush()

	writeSSEEvent(w, "artifact", verdictTask(verdict))
	flusher.Flush()

	writeSSEEvent(w, "done", a2a.TaskStatus{State: a2a.TaskStateCompleted})
	flusher.Flush()
}

type statusEvent struct {
	Text string `json:"text"`
}

func writeSSEEvent(w http.ResponseWriter, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

// verdictTask wraps a GovernanceVerdict as an a2a.Task artifact, the shape
// Surface A clients already know how to read (testutil.extractText walks
// Task.Artifacts first).
func verdictTask(verdict *model.GovernanceVerdict) *a2a.Task {
	payload, _ := json.Marshal(verdict)
	return &a2a.Task{
		ID: a2a.TaskID(verdict.ActionID),
		Status: a2a.TaskStatus{
			State: a2a.TaskStateCompleted,
		},
		Artifacts: []*a2a.Artifact{
			{
				ID:    "verdict",
				Parts: a2a.ContentParts{a2a.TextPart{Text: string(payload)}},
			},
		},
	}
}

func parseAction(msg *a2a.Message) (*model.ProposedAction, error) {
	if msg == nil {
		return nil, fmt.Errorf("message is required")
	}
	text := partsText(msg.Parts)
	if text == "" {
		return nil, fmt.Errorf("message has no text part")
	}
	var action model.ProposedAction
	if err := json.Unmarshal([]byte(text), &action); err != nil {
		return nil, fmt.Errorf("message text is not a valid ProposedAction: %w", err)
	}
	return &action, nil
}

func partsText(parts a2a.ContentParts) string {
	var texts []string
	for _, p := range parts {
		if tp, ok := p.(a2a.TextPart); ok {
			texts = append(texts, tp.Text)
		}
	}
	return strings.Join(texts, "\n")
}

func writeRPCResult(w http.ResponseWriter, id json.RawMessage, result any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rpcResponse{JSONRPC: "2.0", ID: id, Result: result})
}

func writeRPCError(w http.ResponseWriter, id json.RawMessage, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rpcResponse{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: message}})
}
