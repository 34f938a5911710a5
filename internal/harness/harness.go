package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/roach88/restsql/internal/client"
	"github.com/roach88/restsql/internal/config"
	"github.com/roach88/restsql/internal/driver"
	"github.com/roach88/restsql/internal/driver/sqldb"
	"github.com/roach88/restsql/internal/engine"
	"github.com/roach88/restsql/internal/ir"
	"github.com/roach88/restsql/internal/queryir"
	"github.com/roach88/restsql/internal/registry"
	"github.com/roach88/restsql/internal/store"
	"github.com/roach88/restsql/internal/testutil"
)

// ScenarioQueryID is the query id every scenario run is recorded under.
const ScenarioQueryID = "scenario-query"

// scenarioEpoch starts the history clock.
var scenarioEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Result contains the outcome of running a scenario.
type Result struct {
	// Pass is true if every expectation held.
	Pass bool

	// Columns and Rows are the query output. Both are empty on failure.
	Columns []string
	Rows    []ir.Record

	// ErrorCode is the code of the query error, empty on success.
	ErrorCode ir.ErrorCode
	Err       error

	// Requests are the backend requests issued, in order.
	Requests []Request

	// History is the entry recorded for the run.
	History store.Entry

	// Errors contains expectation failures.
	Errors []string
}

// Request is one backend request seen by the harness.
type Request struct {
	Backend   string
	Statement string // relational backends
	Args      []any
	Index     string // search backends
}

// requestLog collects requests from every backend of one run.
type requestLog struct {
	mu       sync.Mutex
	requests []Request
}

func (l *requestLog) add(r Request) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.requests = append(l.requests, r)
}

func (l *requestLog) all() []Request {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Request(nil), l.requests...)
}

// recordingRelational logs every statement before running it.
type recordingRelational struct {
	name string
	db   *sqldb.DB
	log  *requestLog
}

func (r *recordingRelational) Query(ctx context.Context, stmt string, args ...any) (driver.Rows, error) {
	r.log.add(Request{Backend: r.name, Statement: stmt, Args: args})
	return r.db.Query(ctx, stmt, args...)
}

func (r *recordingRelational) Close() error {
	return r.db.Close()
}

// Run executes a scenario and checks its expectations.
//
// Execution model:
//  1. Open one seeded in-memory database per relational backend and one
//     scripted search backend per es backend
//  2. Run the query through a client with fixed ids and a step clock
//  3. Record the run into an in-memory history store
//  4. Compare output and requests against expect
func Run(ctx context.Context, s *Scenario) (*Result, error) {
	log := &requestLog{}
	descriptors, err := openBackends(s, log)
	if err != nil {
		return nil, err
	}
	reg, err := registry.New(descriptors...)
	if err != nil {
		closeAll(descriptors)
		return nil, fmt.Errorf("register backends: %w", err)
	}
	defer reg.Close()

	history, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	defer history.Close()

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts := []engine.Option{
		engine.WithLogger(quiet),
		engine.WithIDGenerator(testutil.NewFixedIDGenerator(ScenarioQueryID)),
		engine.WithParallelSubqueries(s.Engine.Parallel),
	}
	if s.Engine.PushDown != nil {
		opts = append(opts, engine.WithPushDown(*s.Engine.PushDown))
	}
	if s.Engine.MaxJoins > 0 {
		opts = append(opts, engine.WithMaxJoins(s.Engine.MaxJoins))
	}
	c := client.New(engine.New(reg, opts...),
		client.WithHistory(history),
		client.WithClock(testutil.NewStepClock(scenarioEpoch, time.Second).Now),
		client.WithIDGenerator(testutil.NewFixedIDGenerator(ScenarioQueryID)),
		client.WithLogger(quiet),
	)

	data, err := json.Marshal(s.Query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	doc, err := queryir.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	result := &Result{}
	res, runErr := c.Query(ctx, doc)
	result.Requests = log.all()
	if runErr != nil {
		result.ErrorCode = ir.CodeOf(runErr)
		result.Err = runErr
	} else {
		result.Columns = res.Columns()
		result.Rows = res.Records()
	}

	if result.History, err = history.Get(ctx, ScenarioQueryID); err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	result.Errors = checkExpectations(s, result)
	result.Pass = len(result.Errors) == 0
	return result, nil
}

func openBackends(s *Scenario, log *requestLog) ([]*registry.Descriptor, error) {
	descriptors := make([]*registry.Descriptor, 0, len(s.Backends))
	for _, b := range s.Backends {
		d, err := openBackend(b, log)
		if err != nil {
			closeAll(descriptors)
			return nil, fmt.Errorf("backend %q: %w", b.Name, err)
		}
		descriptors = append(descriptors, d)
	}
	return descriptors, nil
}

func openBackend(b BackendSpec, log *requestLog) (*registry.Descriptor, error) {
	cfg := config.BackendConfig{Name: b.Name, Kind: b.Kind, Tables: b.Tables}
	if registry.Kind(b.Kind) == registry.KindES {
		cfg.URL = "scenario://" + b.Name
		d := cfg.Descriptor()
		responses := make(map[string]map[string]any, len(b.Responses))
		for index, raw := range b.Responses {
			reply, err := normalize(raw)
			if err != nil {
				return nil, fmt.Errorf("responses.%s: %w", index, err)
			}
			responses[index] = reply
		}
		d.Search = &testutil.FakeSearch{Respond: func(index string, _ map[string]any) (map[string]any, error) {
			log.add(Request{Backend: b.Name, Index: index})
			reply, ok := responses[index]
			if !ok {
				return nil, fmt.Errorf("no scripted response for index %q", index)
			}
			return reply, nil
		}}
		return d, nil
	}

	cfg.Driver, cfg.DSN = "sqlite3", ":memory:"
	d := cfg.Descriptor()
	db, err := sqldb.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(b.Setup) != "" {
		if _, err := db.DB().Exec(b.Setup); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}
	d.Relational = &recordingRelational{name: b.Name, db: db, log: log}
	return d, nil
}

func closeAll(descriptors []*registry.Descriptor) {
	for _, d := range descriptors {
		if c, ok := d.Relational.(driver.Closer); ok {
			_ = c.Close()
		}
	}
}

// normalize converts a YAML-decoded value into the shape a JSON reply
// decodes to: nested map[string]any with json.Number numbers.
func normalize(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("expected an object")
	}
	return out, nil
}
