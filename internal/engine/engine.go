package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/roach88/climq/internal/aggregate"
	"github.com/roach88/climq/internal/dataset"
	"github.com/roach88/climq/internal/diag"
	"github.com/roach88/climq/internal/execute"
	"github.com/roach88/climq/internal/extract"
	"github.com/roach88/climq/internal/ir"
	"github.com/roach88/climq/internal/metrics"
	"github.com/roach88/climq/internal/narrate"
	"github.com/roach88/climq/internal/plan"
	"github.com/roach88/climq/internal/querysql"
	"github.com/roach88/climq/internal/resolve"
	"github.com/roach88/climq/internal/vocab"
)

// AutoDomain routes each question to the domain whose vocabulary it
// matches best.
const AutoDomain = "auto"

// Status is the outcome category of a question.
type Status string

const (
	StatusAnswered                Status = "answered"
	StatusNoData                  Status = "no_data"
	StatusInsufficientInformation Status = "insufficient_information"
	StatusMissingFilters          Status = "missing_filters"
	StatusRejected                Status = "rejected"
)

// Outcome is everything the engine learned while answering one question.
type Outcome struct {
	QuestionID string `json:"question_id"`
	Seq        int64  `json:"seq"`
	Question   string `json:"question"`
	Domain     string `json:"domain"`
	Status     Status `json:"status"`

	Spans      []ir.CandidateSpan `json:"spans,omitempty"`
	Resolution resolve.Resolution `json:"resolution"`
	Plan       plan.QueryPlan     `json:"plan"`
	Answer     aggregate.Answer   `json:"answer"`

	// Text is the rendered reply shown to the user.
	Text string `json:"text"`

	// Problem explains a non-answered status.
	Problem *Error `json:"-"`

	Events []diag.Event `json:"events,omitempty"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithGazetteer enables the external location tier.
func WithGazetteer(g resolve.Gazetteer, budget int) Option {
	return func(e *Engine) {
		e.gazetteer = g
		e.gazetteerBudget = budget
	}
}

// WithRenderer sets the narrative renderer. Default: narrate.Plain.
func WithRenderer(r narrate.Renderer) Option {
	return func(e *Engine) { e.renderer = r }
}

// WithMetrics records question, entity and drop counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets the base logger. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithIDGenerator sets the question ID generator. Default: UUIDv7.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithQueryTimeout bounds each dataset query.
func WithQueryTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// Engine answers questions against one dataset source.
type Engine struct {
	registry *vocab.Registry
	source   dataset.Source
	domain   string

	gazetteer       resolve.Gazetteer
	gazetteerBudget int
	renderer        narrate.Renderer
	metrics         *metrics.Metrics
	logger          *slog.Logger
	ids             IDGenerator
	timeout         time.Duration
	seq             Sequence

	pipelines map[string]*pipeline
	order     []string
}

// pipeline holds the immutable stages of one domain.
type pipeline struct {
	domain     *vocab.Domain
	extractor  *extract.Extractor
	resolver   *resolve.Resolver
	planner    *plan.Planner
	executor   *execute.Executor
	aggregator *aggregate.Aggregator
}

// New creates an Engine. domain is a registry domain name or AutoDomain.
func New(reg *vocab.Registry, source dataset.Source, domain string, opts ...Option) (*Engine, error) {
	e := &Engine{
		registry: reg,
		source:   source,
		domain:   domain,
		renderer: narrate.Plain{},
		logger:   slog.New(slog.DiscardHandler),
		ids:      UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(e)
	}

	names := reg.Names()
	if domain != AutoDomain {
		if _, ok := reg.Domain(domain); !ok {
			return nil, &Error{
				Code:    ErrCodeUnknownDomain,
				Message: fmt.Sprintf("unknown domain %q (have %s)", domain, strings.Join(names, ", ")),
			}
		}
		names = []string{domain}
	}

	lookup := execute.NewLookup(source)
	e.pipelines = make(map[string]*pipeline, len(names))
	for _, name := range names {
		d, _ := reg.Domain(name)
		e.pipelines[name] = &pipeline{
			domain:     d,
			extractor:  extract.New(d),
			resolver:   resolve.New(d, lookup, resolve.Options{Gazetteer: e.gazetteer, GazetteerBudget: e.gazetteerBudget}),
			planner:    plan.New(d),
			executor:   execute.New(source, d, execute.Options{Timeout: e.timeout, Metrics: e.metrics}),
			aggregator: aggregate.New(d),
		}
		e.order = append(e.order, name)
	}
	return e, nil
}

// Domains lists the domains the engine routes between.
func (e *Engine) Domains() []string {
	return append([]string(nil), e.order...)
}

// Ask answers a question.
func (e *Engine) Ask(ctx context.Context, question string) (Outcome, error) {
	return e.answer(ctx, question, true)
}

// Explain runs a question up to planning. Nothing is executed.
func (e *Engine) Explain(ctx context.Context, question string) (Outcome, error) {
	return e.answer(ctx, question, false)
}

func (e *Engine) answer(ctx context.Context, question string, run bool) (out Outcome, err error) {
	question = strings.TrimSpace(question)
	p, extracted := e.route(question)

	out = Outcome{
		QuestionID: e.ids.Generate(),
		Seq:        e.seq.Next(),
		Question:   question,
		Domain:     p.domain.Name,
		Spans:      extracted.Spans,
	}
	dc := diag.New(e.logger.With(slog.Int64("seq", out.Seq)), out.QuestionID, question, out.Domain)
	dc.Record("extract", "routed question", "spans", spanLabels(extracted.Spans), "score", extracted.Score())

	defer func() {
		out.Events = dc.Events()
		e.observe(dc, out)
	}()

	if len(extracted.Spans) == 0 {
		return e.unanswered(&out, StatusInsufficientInformation, newExtractionMiss(out.QuestionID)), nil
	}

	out.Resolution = p.resolver.Resolve(ctx, dc, extracted.Spans)
	if err := ctx.Err(); err != nil {
		return out, err
	}
	switch {
	case out.Resolution.MissingFilters() && unextracted(p.domain, extracted.Spans, out.Resolution.Missing):
		miss := newExtractionMiss(out.QuestionID)
		miss.Missing = out.Resolution.Missing
		return e.unanswered(&out, StatusInsufficientInformation, miss), nil
	case out.Resolution.DateOutOfRange() && onlyDateMissing(out.Resolution.Missing):
		return e.outOfRange(ctx, dc, &out)
	case out.Resolution.MissingFilters():
		return e.unanswered(&out, StatusMissingFilters, newMissingFilters(out.QuestionID, out.Resolution.Missing)), nil
	case out.Resolution.Empty():
		return e.unanswered(&out, StatusInsufficientInformation, newExtractionMiss(out.QuestionID)), nil
	}

	qp, err := p.planner.Plan(dc, out.Resolution)
	if err != nil {
		var re *querysql.RejectedError
		if errors.As(err, &re) {
			return e.unanswered(&out, StatusRejected, newRejected(out.QuestionID, err)), nil
		}
		return out, fmt.Errorf("plan question %s: %w", out.QuestionID, err)
	}
	out.Plan = qp
	if qp.Empty() {
		return e.unanswered(&out, StatusInsufficientInformation, newExtractionMiss(out.QuestionID)), nil
	}
	if !run {
		out.Status = StatusAnswered
		return out, nil
	}

	results := p.executor.Run(ctx, dc, qp)
	if err := ctx.Err(); err != nil {
		return out, err
	}
	out.Answer = p.aggregator.Aggregate(results)
	out.Status = StatusAnswered
	if out.Answer.NoData() {
		out.Status = StatusNoData
	}

	text, err := e.renderer.Render(ctx, question, out.Answer)
	if err != nil {
		return out, fmt.Errorf("render answer: %w", err)
	}
	out.Text = text
	dc.Record("render", "rendered answer", "status", string(out.Status), "facts", len(out.Answer.Facts))
	return out, nil
}

// route picks the pipeline for a question. A fixed domain always wins;
// otherwise the strongest extraction score wins, ties going to the
// earlier domain.
func (e *Engine) route(question string) (*pipeline, extract.Result) {
	var (
		best      *pipeline
		bestRes   extract.Result
		bestScore = -1.0
	)
	for _, name := range e.order {
		p := e.pipelines[name]
		res := p.extractor.Extract(nil, question)
		if s := res.Score(); s > bestScore {
			best, bestRes, bestScore = p, res, s
		}
	}
	return best, bestRes
}

// outOfRange answers a question whose only years lie outside the domain's
// range. Nothing is compiled; the dataset holds no rows for those years.
func (e *Engine) outOfRange(ctx context.Context, dc *diag.Context, out *Outcome) (Outcome, error) {
	out.Status = StatusNoData
	text, err := e.renderer.Render(ctx, out.Question, out.Answer)
	if err != nil {
		return *out, fmt.Errorf("render answer: %w", err)
	}
	out.Text = text
	dc.Record("render", "rendered answer", "status", string(out.Status), "out_of_range", len(out.Resolution.OutOfRange))
	return *out, nil
}

// spanLabels renders spans as KIND:text for the extract event.
func spanLabels(spans []ir.CandidateSpan) []string {
	out := make([]string, len(spans))
	for i, s := range spans {
		out[i] = string(s.Kind) + ":" + s.Text
	}
	return out
}

func onlyDateMissing(missing []ir.Kind) bool {
	return !slices.ContainsFunc(missing, func(k ir.Kind) bool { return k != ir.KindDate })
}

// unextracted reports whether every missing kind is one the domain always
// requires and no candidate of that kind was extracted. Such a question
// names nothing the domain knows and is an extraction miss; kinds that had
// candidates, or that only a metric makes required, are missing filters.
func unextracted(d *vocab.Domain, spans []ir.CandidateSpan, missing []ir.Kind) bool {
	for _, k := range missing {
		if !slices.Contains(d.Require, k) {
			return false
		}
		if slices.ContainsFunc(spans, func(s ir.CandidateSpan) bool { return s.Kind == k }) {
			return false
		}
	}
	return true
}

func (e *Engine) unanswered(out *Outcome, status Status, problem *Error) Outcome {
	out.Status = status
	out.Problem = problem
	switch status {
	case StatusMissingFilters:
		out.Text = "Missing required filters: " + strings.TrimPrefix(problem.Message, "missing required filters: ") + "."
	case StatusRejected:
		out.Text = "The question could not be answered safely: " + problem.Message
	default:
		out.Text = "I could not find a metric, location, category or date to look up. Try naming what to measure, where and when."
	}
	return *out
}

func (e *Engine) observe(dc *diag.Context, out Outcome) {
	dc.Logger().Info("question answered",
		slog.String("status", string(out.Status)),
		slog.Int("queries", len(out.Plan.Items)),
		slog.Int("facts", len(out.Answer.Facts)),
	)
	if e.metrics == nil {
		return
	}
	e.metrics.Question(out.Domain, string(out.Status))
	for _, ent := range out.Resolution.Entities {
		e.metrics.Entity(string(ent.Kind), string(ent.Source))
	}
	for _, ev := range out.Events {
		if strings.HasPrefix(ev.Message, "dropped ") {
			e.metrics.Drop(ev.Stage)
		}
	}
}
