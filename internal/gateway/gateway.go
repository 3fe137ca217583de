package gateway

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/tradeease/workflowgate/internal/audit"
	"github.com/tradeease/workflowgate/internal/config"
	"github.com/tradeease/workflowgate/internal/monitor"
	"github.com/tradeease/workflowgate/internal/scanner"
	"github.com/tradeease/workflowgate/pkg/cerr"
	"github.com/tradeease/workflowgate/pkg/panicerr"
)

type Config struct {
	RequestTimeout time.Duration
	MaxDepth       int
	MaxNodes       int
	MaxBatchSize   int
}

func ConfigFromEnv(env *config.GatewayEnv) Config {
	return Config{
		RequestTimeout: env.RequestTimeout,
		MaxDepth:       env.MaxWorkflowDepth,
		MaxNodes:       env.MaxWorkflowNodes,
		MaxBatchSize:   env.MaxBatchSize,
	}
}

// Gateway validates, scans, rate-limits and audits every workflow mutation
// request before the caller is allowed to touch storage. All dependencies are
// injected; there is exactly one Gateway per process, constructed at startup.
type Gateway struct {
	cfg     Config
	scanner *scanner.Scanner
	monitor *monitor.Monitor
	audit   *audit.Logger
	depthFn DepthFunc
	now     func() time.Time
}

type Option func(*Gateway)

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
	}
}

// WithDepthFunc replaces the graph depth computation.
func WithDepthFunc(fn DepthFunc) Option {
	return func(g *Gateway) {
		g.depthFn = fn
	}
}

func New(cfg Config, sc *scanner.Scanner, mon *monitor.Monitor, auditLogger *audit.Logger, opts ...Option) *Gateway {
	g := &Gateway{
		cfg:     cfg,
		scanner: sc,
		monitor: mon,
		audit:   auditLogger,
		depthFn: defaultDepth,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// One entry point per mutation kind. The caller proceeds to persistence only
// when the returned outcome is allowed.

func (g *Gateway) Create(ctx context.Context, req *OperationRequest) (*Outcome, error) {
	return g.authorize(ctx, OperationCreate, req)
}

func (g *Gateway) Edit(ctx context.Context, req *OperationRequest) (*Outcome, error) {
	return g.authorize(ctx, OperationEdit, req)
}

func (g *Gateway) Delete(ctx context.Context, req *OperationRequest) (*Outcome, error) {
	return g.authorize(ctx, OperationDelete, req)
}

func (g *Gateway) View(ctx context.Context, req *OperationRequest) (*Outcome, error) {
	return g.authorize(ctx, OperationView, req)
}

func (g *Gateway) Search(ctx context.Context, req *OperationRequest) (*Outcome, error) {
	return g.authorize(ctx, OperationSearch, req)
}

// AuthorizeBatch validates every request before any is accepted. The batch
// fails atomically: on error the caller must apply none of its members. A
// batch over the size cap is rejected before any member is validated.
func (g *Gateway) AuthorizeBatch(ctx context.Context, reqs []*OperationRequest) ([]*Outcome, error) {
	if len(reqs) > g.cfg.MaxBatchSize {
		e := cerr.New(cerr.KindWorkflow,
			fmt.Sprintf("batch size %d exceeds maximum of %d operations", len(reqs), g.cfg.MaxBatchSize), nil)
		g.audit.LogOperation(ctx, audit.Entry{
			Operation: "batch",
			Status:    audit.StatusFailure,
			Err:       e,
		})
		return nil, e
	}

	outcomes := make([]*Outcome, len(reqs))
	var firstErr error
	for i, req := range reqs {
		outcome, err := g.authorize(ctx, "", req)
		outcomes[i] = outcome
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return outcomes, firstErr
	}
	return outcomes, nil
}

// authorize runs the pipeline for one request and records the terminal
// outcome exactly once. want is the operation the transport entry point
// expects; empty means any (batch members carry their own).
func (g *Gateway) authorize(ctx context.Context, want Operation, req *OperationRequest) (*Outcome, error) {
	err := panicerr.Run(func() error {
		return g.pipeline(want, req)
	})

	meta := g.requestMeta(req)
	if err != nil {
		e := cerr.Convert(err).WithMeta(meta)

		status := audit.StatusFailure
		switch e.Kind {
		case cerr.KindSecurity, cerr.KindRateLimit:
			status = audit.StatusBlocked
		}
		if meta.UserID != "" {
			if status == audit.StatusBlocked {
				g.monitor.RecordSuspicious(meta.UserID)
			} else {
				g.monitor.RecordFailure(meta.UserID)
			}
		}
		g.audit.LogOperation(ctx, g.auditEntry(req, status, e))

		return &Outcome{
			Allowed: false,
			Kind:    e.Kind,
			Code:    e.Kind.String(),
			Message: e.Msg,
			Meta:    meta,
		}, e
	}

	g.audit.LogOperation(ctx, g.auditEntry(req, audit.StatusSuccess, nil))
	return &Outcome{Allowed: true, Meta: meta}, nil
}

// pipeline enforces the stage order: schema, timing, complexity, security
// scan, rate limit. The attempt is recorded up front so hammering with
// invalid payloads still counts against the window; the limit itself is
// enforced last so deterministic failures keep their own error kinds.
func (g *Gateway) pipeline(want Operation, req *OperationRequest) error {
	rateOK := true
	if req != nil && req.Grant.UserID != "" {
		rateOK, _ = g.monitor.Allow(req.Grant.UserID)
	}

	if err := validateRequest(req); err != nil {
		return err
	}
	if want != "" && req.Grant.Operation != want {
		return cerr.New(cerr.KindPermission,
			fmt.Sprintf("grant operation %q does not match requested %q", req.Grant.Operation, want), nil)
	}
	if (req.Grant.Operation == OperationEdit || req.Grant.Operation == OperationDelete) && req.ResourceID == "" {
		return cerr.New(cerr.KindValidation, "missing target resource id", nil)
	}

	if err := checkTiming(&req.Grant, g.now(), g.cfg.RequestTimeout); err != nil {
		return err
	}
	if err := checkComplexity(&req.Content, g.cfg.MaxDepth, g.cfg.MaxNodes, g.depthFn); err != nil {
		return err
	}

	if match, hit := g.scanner.Scan(req.Content.Text); hit {
		return cerr.New(cerr.KindSecurity,
			fmt.Sprintf("content contains forbidden pattern (%s)", match.Category), nil)
	}

	if !rateOK {
		return cerr.New(cerr.KindRateLimit, "rate limit exceeded", nil)
	}
	return nil
}

func (g *Gateway) requestMeta(req *OperationRequest) cerr.Meta {
	m := cerr.Meta{Timestamp: g.now()}
	if req == nil {
		return m
	}
	m.UserID = req.Grant.UserID
	m.Operation = string(req.Grant.Operation)
	m.ResourceID = req.ResourceID
	m.DeviceID = req.Session.DeviceInfo.ID
	return m
}

func (g *Gateway) auditEntry(req *OperationRequest, status audit.Status, err error) audit.Entry {
	e := audit.Entry{Status: status, Err: err}
	if req == nil {
		return e
	}
	e.Operation = string(req.Grant.Operation)
	e.UserID = req.Grant.UserID
	e.NodeType = string(req.Content.NodeType)
	e.DeviceID = req.Session.DeviceInfo.ID
	e.ContentLength = utf8.RuneCountInString(req.Content.Text)
	e.HasMetadata = req.Content.Metadata != nil
	e.Context = string(req.Grant.Context)
	e.ResourceID = req.ResourceID
	return e
}

// UserMetrics exposes the monitor's counters for the metrics endpoint.
func (g *Gateway) UserMetrics(userID string) monitor.Metrics {
	return g.monitor.UserMetrics(userID)
}
