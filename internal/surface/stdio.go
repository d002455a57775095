package surface

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"github.com/sentinel-governance/sentinel/internal/model"
)

// toolRequest is one line of stdin for Surface B.
type toolRequest struct {
	Tool  string          `json:"tool"`
	Input json.RawMessage `json:"input"`
}

// toolResponse is one line of stdout for Surface B: exactly one of
// Output or Error is set.
type toolResponse struct {
	Output any    `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

type evaluateActionInput struct {
	Action model.ProposedAction `json:"action"`
}

type getRecentDecisionsInput struct {
	Limit      int    `json:"limit"`
	ResourceID string `json:"resource_id"`
}

type getRiskProfileInput struct {
	ResourceID   string `json:"resource_id"`
	HistoryLimit int    `json:"history_limit"`
}

// StdioServer runs Surface B: a newline-delimited JSON tool protocol over
// stdin/stdout, dispatching to the same Facade Surface C uses.
type StdioServer struct {
	facade *Facade
	logger *slog.Logger
}

// NewStdioServer builds a StdioServer over facade.
func NewStdioServer(facade *Facade) *StdioServer {
	return &StdioServer{facade: facade, logger: slog.Default()}
}

// Serve reads one {"tool":...,"input":...} request per line from r and
// writes one {"output":...} or {"error":...} response per line to w,
// until r is exhausted or ctx is canceled. Malformed lines produce an
// error response rather than terminating the loop.
func (s *StdioServer) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	enc := json.NewEncoder(w)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		resp := s.handleLine(ctx, line)
		if err := enc.Encode(resp); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (s *StdioServer) handleLine(ctx context.Context, line []byte) toolResponse {
	var req toolRequest
	if err := json.Unmarshal(line, &req); err != nil {
		return toolResponse{Error: "malformed request: " + err.Error()}
	}

	output, err := s.dispatch(ctx, req)
	if err != nil {
		s.logger.Warn("stdio tool call failed", "tool", req.Tool, "error", err)
		return toolResponse{Error: err.Error()}
	}
	return toolResponse{Output: output}
}

func (s *StdioServer) dispatch(ctx context.Context, req toolRequest) (any, error) {
	switch req.Tool {
	case "evaluate_action":
		var in evaluateActionInput
		if err := json.Unmarshal(req.Input, &in); err != nil {
			return nil, err
		}
		return s.facade.EvaluateAction(ctx, &in.Action)

	case "get_recent_decisions":
		var in getRecentDecisionsInput
		if len(req.Input) > 0 {
			if err := json.Unmarshal(req.Input, &in); err != nil {
				return nil, err
			}
		}
		return s.facade.GetRecentDecisions(ctx, in.Limit, in.ResourceID)

	case "get_risk_profile":
		var in getRiskProfileInput
		if err := json.Unmarshal(req.Input, &in); err != nil {
			return nil, err
		}
		if in.HistoryLimit <= 0 {
			in.HistoryLimit = 20
		}
		return s.facade.GetRiskProfile(ctx, in.ResourceID, in.HistoryLimit)

	default:
		return nil, errors.New("unknown tool: " + req.Tool)
	}
}
