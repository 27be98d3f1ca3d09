// Package execute dispatches a query plan to the dataset collaborator and
// turns the replies into typed rows.
//
// Dispatch is bounded by the number of distinct tables the plan touches.
// Results come back in plan order. A failed or timed-out query degrades to
// a NoData result for its item only; it never fails the plan.
package execute

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/climq/internal/dataset"
	"github.com/roach88/climq/internal/diag"
	"github.com/roach88/climq/internal/metrics"
	"github.com/roach88/climq/internal/plan"
	"github.com/roach88/climq/internal/querysql"
	"github.com/roach88/climq/internal/vocab"
)

// Cell is one decoded value.
type Cell struct {
	Column string `json:"column"`
	Text   string `json:"text"`
	Null   bool   `json:"null,omitempty"`

	// Measure marks a metric value column. Measure cells carry Number,
	// Unit and Display when the value is numeric.
	Measure bool             `json:"measure,omitempty"`
	Number  *decimal.Decimal `json:"number,omitempty"`
	Unit    string           `json:"unit,omitempty"`
	Display string           `json:"display,omitempty"`
}

// Row is an ordered column to value mapping.
type Row struct {
	Cells []Cell `json:"cells"`
}

// Get returns the cell for column.
func (r Row) Get(column string) (Cell, bool) {
	for _, c := range r.Cells {
		if c.Column == column {
			return c, true
		}
	}
	return Cell{}, false
}

// Result is the outcome of one plan item.
type Result struct {
	Item   plan.Item `json:"item"`
	Rows   []Row     `json:"rows,omitempty"`
	NoData bool      `json:"no_data,omitempty"`
	Err    error     `json:"-"`
}

// Failure is an execution error for one query.
type Failure struct {
	Database  string
	Statement string
	Err       error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("execute on %s: %v", f.Database, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Options configure an Executor.
type Options struct {
	// Timeout bounds each query. Zero means no per-query timeout.
	Timeout time.Duration

	Metrics *metrics.Metrics
}

// Executor runs plans against one dataset source.
type Executor struct {
	source dataset.Source
	domain *vocab.Domain
	opts   Options
}

// New creates an Executor for plans of domain d.
func New(source dataset.Source, d *vocab.Domain, opts Options) *Executor {
	return &Executor{source: source, domain: d, opts: opts}
}

// Run executes every item of p and returns one Result per item, in plan
// order.
func (x *Executor) Run(ctx context.Context, dc *diag.Context, p plan.QueryPlan) []Result {
	results := make([]Result, len(p.Items))
	if p.Empty() {
		return results
	}

	var g errgroup.Group
	g.SetLimit(len(p.Tables()))
	for i, it := range p.Items {
		g.Go(func() error {
			results[i] = x.run(ctx, dc, it)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// dispatch binds the parameterized form when the source supports it.
func (x *Executor) dispatch(ctx context.Context, q querysql.CompiledQuery) (dataset.Reply, error) {
	if b, ok := x.source.(dataset.Binder); ok && q.Parameterized != "" {
		return b.ExecuteArgs(ctx, q.Database, q.Parameterized, q.Args...)
	}
	return x.source.Execute(ctx, q.Database, q.Statement)
}

func (x *Executor) run(ctx context.Context, dc *diag.Context, it plan.Item) Result {
	if x.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, x.opts.Timeout)
		defer cancel()
	}

	res := Result{Item: it}
	start := time.Now()
	reply, err := x.dispatch(ctx, it.Query)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			dc.Warn("execute", "query timed out", "statement", it.Query.Statement)
		} else {
			dc.Warn("execute", "query failed", "statement", it.Query.Statement, "error", err.Error())
		}
		x.opts.Metrics.Query("error", time.Since(start))
		res.NoData = true
		res.Err = &Failure{Database: it.Query.Database, Statement: it.Query.Statement, Err: err}
		return res
	}

	res.Rows = x.rows(dc, it, reply)
	res.NoData = len(res.Rows) == 0
	if res.NoData {
		x.opts.Metrics.Query("no_data", time.Since(start))
	} else {
		x.opts.Metrics.Query("ok", time.Since(start))
	}
	dc.Record("execute", "query done", "statement", it.Query.Statement, "rows", len(res.Rows))
	return res
}

// rows zips reply records against the projected columns. Records of the
// wrong width are dropped.
func (x *Executor) rows(dc *diag.Context, it plan.Item, reply dataset.Reply) []Row {
	if reply.NoData {
		return nil
	}
	records := reply.Records
	if records == nil {
		text := strings.TrimSpace(reply.Text)
		if text == "" || text == dataset.NoDataText {
			return nil
		}
		records = DecodeText(text)
	}

	cols := it.Query.Columns
	measures := x.measureColumns(it)
	var out []Row
	for i, rec := range records {
		if len(rec) != len(cols) {
			dc.Drop("execute", "row "+strconv.Itoa(i), fmt.Sprintf("has %d values for %d columns", len(rec), len(cols)))
			continue
		}
		row := Row{Cells: make([]Cell, len(cols))}
		for j, name := range cols {
			row.Cells[j] = x.cell(it, name, measures[name], rec[j])
		}
		out = append(out, row)
	}
	return out
}

// measureColumns maps output columns to the domain column whose values
// they hold. Total items sum Measures[i] into output column i.
func (x *Executor) measureColumns(it plan.Item) map[string]string {
	out := make(map[string]string, len(it.Measures))
	if it.Role == plan.RoleTotal {
		for i, m := range it.Measures {
			if i < len(it.Query.Columns) {
				out[it.Query.Columns[i]] = m
			}
		}
		return out
	}
	for _, m := range it.Measures {
		out[m] = m
	}
	return out
}

func (x *Executor) cell(it plan.Item, name, source string, v any) Cell {
	c := Cell{Column: name, Null: v == nil, Text: text(v), Measure: source != ""}
	if !c.Measure || c.Null {
		return c
	}
	n, ok := number(v)
	if !ok {
		return c
	}
	col, _ := x.domain.Column(source)
	c.Number = &n
	c.Unit = col.Unit
	if c.Unit == "" {
		if m, ok := x.domain.Metric(it.Triple.Metric); ok {
			c.Unit = m.Unit
		}
	}
	c.Display = Display(col, c.Unit, n)
	return c
}

func text(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}
