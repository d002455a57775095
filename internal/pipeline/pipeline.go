// Package pipeline fans a ProposedAction out to the four SRI evaluators
// concurrently, feeds their results to the Decision Engine, and persists
// the resulting verdict, using golang.org/x/sync/errgroup for the
// concurrent fan-out.
package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sentinel-governance/sentinel/internal/audit"
	"github.com/sentinel-governance/sentinel/internal/decision"
	"github.com/sentinel-governance/sentinel/internal/model"
	"github.com/sentinel-governance/sentinel/internal/registry"
	"github.com/sentinel-governance/sentinel/internal/sentinelerr"
)

// neutralScore is substituted for any evaluator that fails or times out.
const neutralScore = 50.0

// BlastRadiusEvaluator, PolicyEvaluator, HistoricalEvaluator, and
// FinancialEvaluator are the narrow interfaces the Pipeline depends on —
// satisfied by internal/evaluator's concrete types.
type BlastRadiusEvaluator interface {
	Evaluate(ctx context.Context, action *model.ProposedAction) (*model.BlastRadiusResult, error)
}

type PolicyEvaluator interface {
	Evaluate(ctx context.Context, action *model.ProposedAction) (*model.PolicyResult, error)
}

type HistoricalEvaluator interface {
	Evaluate(ctx context.Context, action *model.ProposedAction) (*model.HistoricalResult, error)
}

type FinancialEvaluator interface {
	Evaluate(ctx context.Context, action *model.ProposedAction) (*model.FinancialResult, error)
}

// Narrator is the optional LLM narration post-processor. It may rewrite a
// verdict's reasoning text but must never change scores or the decision;
// the pipeline treats any narration error as non-fatal.
type Narrator interface {
	Narrate(ctx context.Context, verdict *model.GovernanceVerdict) error
}

// Pipeline is the governance engine's evaluate(action) -> verdict contract.
type Pipeline struct {
	blastRadius BlastRadiusEvaluator
	policy      PolicyEvaluator
	historical  HistoricalEvaluator
	financial   FinancialEvaluator

	engine   *decision.Engine
	auditLog audit.Store
	agents   registry.Registry

	evaluatorTimeout time.Duration
	newActionID      func() string
	now              func() time.Time
	narrator         Narrator

	logger *slog.Logger
}

// Option configures optional Pipeline behavior.
type Option func(*Pipeline)

// WithClock overrides the pipeline's notion of "now", for deterministic
// tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithIDGenerator overrides action_id generation, for deterministic tests.
func WithIDGenerator(gen func() string) Option {
	return func(p *Pipeline) { p.newActionID = gen }
}

// WithLogger overrides the pipeline's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithNarrator attaches the optional LLM narration post-processor, applied
// to each verdict's reasoning text before it is persisted.
func WithNarrator(n Narrator) Option {
	return func(p *Pipeline) { p.narrator = n }
}

// New builds a Pipeline from its four evaluators, a Decision Engine, and
// the Audit Log / Agent Registry it records side effects to.
func New(
	blastRadius BlastRadiusEvaluator,
	policy PolicyEvaluator,
	historical HistoricalEvaluator,
	financial FinancialEvaluator,
	engine *decision.Engine,
	auditLog audit.Store,
	agents registry.Registry,
	evaluatorTimeout time.Duration,
	opts ...Option,
) *Pipeline {
	p := &Pipeline{
		blastRadius:      blastRadius,
		policy:           policy,
		historical:       historical,
		financial:        financial,
		engine:           engine,
		auditLog:         auditLog,
		agents:           agents,
		evaluatorTimeout: evaluatorTimeout,
		newActionID:      func() string { return uuid.New().String() },
		now:              time.Now,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Evaluate implements the Pipeline contract: evaluate(action) -> verdict.
func (p *Pipeline) Evaluate(ctx context.Context, action *model.ProposedAction) (*model.GovernanceVerdict, error) {
	if err := action.Validate(); err != nil {
		return nil, err
	}
	action.Normalize(p.newActionID, p.now)

	sub, failures := p.runEvaluators(ctx, action)

	if ctx.Err() != nil {
		return nil, &sentinelerr.DeadlineExceededError{ActionID: action.ActionID}
	}

	verdict := p.engine.Decide(action, *sub)
	if len(failures) > 0 {
		verdict.Reason += " (degraded: " + strings.Join(failures, "; ") + ")"
	}

	p.narrateVerdict(ctx, verdict)
	p.recordAuditLog(ctx, verdict)
	p.updateRegistry(ctx, action, verdict)

	return verdict, nil
}

// runEvaluators fans the action out to all four evaluators concurrently.
// Each evaluator gets its own timeout; failure or timeout substitutes the
// neutral score and records a failure note rather than failing the call.
// errgroup's shared context is used only to let a caller-provided
// deadline/cancellation stop everything at once — an individual evaluator
// failing never cancels its siblings. The returned notes are ordered
// blast_radius, policy, historical, financial so the verdict's degraded
// text is deterministic.
func (p *Pipeline) runEvaluators(ctx context.Context, action *model.ProposedAction) (*model.SubResults, []string) {
	sub := &model.SubResults{}
	var notes [4]string
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sub.BlastRadius, notes[0] = p.runBlastRadius(gctx, action)
		return nil
	})
	g.Go(func() error {
		sub.Policy, notes[1] = p.runPolicy(gctx, action)
		return nil
	})
	g.Go(func() error {
		sub.Historical, notes[2] = p.runHistorical(gctx, action)
		return nil
	})
	g.Go(func() error {
		sub.Financial, notes[3] = p.runFinancial(gctx, action)
		return nil
	})

	// Each goroutine above swallows its own evaluator's error (substituting
	// the neutral score) rather than returning it, so g.Wait() never itself
	// fails; cancellation is detected by the caller checking ctx.Err().
	_ = g.Wait()

	var failures []string
	for _, n := range notes {
		if n != "" {
			failures = append(failures, n)
		}
	}
	return sub, failures
}

func (p *Pipeline) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.evaluatorTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, p.evaluatorTimeout)
}

func (p *Pipeline) runBlastRadius(ctx context.Context, action *model.ProposedAction) (*model.BlastRadiusResult, string) {
	cctx, cancel := p.withTimeout(ctx)
	defer cancel()
	result, err := p.blastRadius.Evaluate(cctx, action)
	if err != nil {
		p.logEvaluatorFailure("blast_radius", err)
		note := evaluatorFailureNote("blast_radius", err)
		return &model.BlastRadiusResult{Score: neutralScore, Reasoning: note}, note
	}
	return result, ""
}

func (p *Pipeline) runPolicy(ctx context.Context, action *model.ProposedAction) (*model.PolicyResult, string) {
	cctx, cancel := p.withTimeout(ctx)
	defer cancel()
	result, err := p.policy.Evaluate(cctx, action)
	if err != nil {
		p.logEvaluatorFailure("policy", err)
		note := evaluatorFailureNote("policy", err)
		return &model.PolicyResult{Score: neutralScore, Reasoning: note}, note
	}
	return result, ""
}

func (p *Pipeline) runHistorical(ctx context.Context, action *model.ProposedAction) (*model.HistoricalResult, string) {
	cctx, cancel := p.withTimeout(ctx)
	defer cancel()
	result, err := p.historical.Evaluate(cctx, action)
	if err != nil {
		p.logEvaluatorFailure("historical", err)
		note := evaluatorFailureNote("historical", err)
		return &model.HistoricalResult{Score: neutralScore, Reasoning: note}, note
	}
	return result, ""
}

func (p *Pipeline) runFinancial(ctx context.Context, action *model.ProposedAction) (*model.FinancialResult, string) {
	cctx, cancel := p.withTimeout(ctx)
	defer cancel()
	result, err := p.financial.Evaluate(cctx, action)
	if err != nil {
		p.logEvaluatorFailure("financial", err)
		note := evaluatorFailureNote("financial", err)
		return &model.FinancialResult{Score: neutralScore, Reasoning: note}, note
	}
	return result, ""
}

// narrateVerdict runs the optional LLM narration pass over the verdict's
// reasoning text. Narration never touches scores and its failure never
// blocks the verdict.
func (p *Pipeline) narrateVerdict(ctx context.Context, verdict *model.GovernanceVerdict) {
	if p.narrator == nil {
		return
	}
	if err := p.narrator.Narrate(ctx, verdict); err != nil {
		p.logger.Warn("narration failed, keeping deterministic reason",
			"action_id", verdict.ActionID, "error", err)
	}
}

func (p *Pipeline) logEvaluatorFailure(name string, err error) {
	p.logger.Warn("evaluator failed, substituting neutral score",
		"evaluator", name, "error", (&sentinelerr.EvaluatorFailure{Evaluator: name, Err: err}).Error())
}

func evaluatorFailureNote(name string, err error) string {
	return (&sentinelerr.EvaluatorFailure{Evaluator: name, Err: err}).Error()
}

// recordAuditLog persists the verdict before return. Persistence failure is logged and does not block
// return.
func (p *Pipeline) recordAuditLog(ctx context.Context, verdict *model.GovernanceVerdict) {
	if p.auditLog == nil {
		return
	}
	if err := p.auditLog.Record(ctx, verdict); err != nil {
		p.logger.Warn("audit log persistence failed",
			"action_id", verdict.ActionID,
			"error", (&sentinelerr.PersistenceFailure{Target: "audit_log", Err: err}).Error())
	}
}

// updateRegistry updates the Agent Registry after the audit log write.
// Skipped when the action carries no
// agent_id. Failure is logged and does not block return.
func (p *Pipeline) updateRegistry(ctx context.Context, action *model.ProposedAction, verdict *model.GovernanceVerdict) {
	if p.agents == nil || action.AgentID == "" {
		return
	}
	if err := p.agents.Register(ctx, action.AgentID, ""); err != nil {
		p.logger.Warn("agent registration failed", "agent_id", action.AgentID, "error", err)
	}
	if err := p.agents.UpdateStats(ctx, action.AgentID, verdict.Decision, p.now()); err != nil {
		p.logger.Warn("agent registry update failed",
			"agent_id", action.AgentID,
			"error", (&sentinelerr.PersistenceFailure{Target: "agent_registry", Err: err}).Error())
	}
}
