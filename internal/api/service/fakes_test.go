package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"clipflow/internal/api/models"
	"clipflow/internal/engine"
	"clipflow/internal/engine/credit"
	"clipflow/internal/engine/graph"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// ============ Fakes ============

type fakeWorkflows struct {
	mu   sync.Mutex
	rows map[string]models.Workflow
}

func newFakeWorkflows(wfs ...models.Workflow) *fakeWorkflows {
	f := &fakeWorkflows{rows: make(map[string]models.Workflow)}
	for _, wf := range wfs {
		f.rows[wf.ID] = wf
	}
	return f
}

func (f *fakeWorkflows) FindByID(id string) (models.Workflow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wf, ok := f.rows[id]
	if !ok {
		return models.Workflow{}, gorm.ErrRecordNotFound
	}
	return wf, nil
}

func (f *fakeWorkflows) FindAllByUser(userID string) ([]models.Workflow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Workflow
	for _, wf := range f.rows {
		if wf.UserID == userID {
			out = append(out, wf)
		}
	}
	return out, nil
}

func (f *fakeWorkflows) Create(wf *models.Workflow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[wf.ID] = *wf
	return nil
}

func (f *fakeWorkflows) Update(wf *models.Workflow) error {
	return f.Create(wf)
}

func (f *fakeWorkflows) Delete(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, id)
	return nil
}

type fakeTransactions struct {
	mu  sync.Mutex
	txs []models.CreditTransaction
}

func (f *fakeTransactions) Create(tx *models.CreditTransaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx.ID = uint(len(f.txs) + 1)
	f.txs = append(f.txs, *tx)
	return nil
}

func (f *fakeTransactions) FindAllByUser(userID string, limit, offset int) ([]models.CreditTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var mine []models.CreditTransaction
	for i := len(f.txs) - 1; i >= 0; i-- {
		if f.txs[i].UserID == userID {
			mine = append(mine, f.txs[i])
		}
	}
	if offset >= len(mine) {
		return nil, nil
	}
	mine = mine[offset:]
	if len(mine) > limit {
		mine = mine[:limit]
	}
	return mine, nil
}

func (f *fakeTransactions) all() []models.CreditTransaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.CreditTransaction(nil), f.txs...)
}

// fakeModels echoes the prompt; prompts starting with "block" wait for the context and
// "fail" fails.
type fakeModels struct {
	started chan string
}

func (f *fakeModels) Run(ctx context.Context, model string, input map[string]any, _ func()) (any, error) {
	prompt, _ := input["prompt"].(string)
	switch {
	case strings.HasPrefix(prompt, "block"):
		f.started <- prompt
		<-ctx.Done()
		return nil, ctx.Err()
	case strings.HasPrefix(prompt, "fail"):
		return nil, &engine.NodeError{Code: engine.CodeExternalCallFailed, StatusCode: 502, Message: "bad gateway"}
	}
	return "gen(" + prompt + ")", nil
}

type fakeMail struct {
	sent chan EmailMessage
}

func (f *fakeMail) Send(_ context.Context, msg EmailMessage) error {
	f.sent <- msg
	return nil
}

// ============ Helpers ============

func data(v map[string]any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func wfNode(id string, kind graph.Kind, params map[string]any, y float64) models.WorkflowNode {
	return models.WorkflowNode{ID: id, Type: string(kind), Data: data(params), Position: graph.Position{Y: y}}
}

func wfEdge(src, dst, port string) graph.Edge {
	return graph.Edge{Source: src, Target: dst, TargetPort: port}
}

// linearWorkflow is in -> gen (openai/gpt-5, 2 credits) -> out.
func linearWorkflow(id, userID string) models.Workflow {
	return models.Workflow{
		ID:     id,
		UserID: userID,
		Name:   "linear",
		Graph: models.WorkflowGraph{
			Nodes: []models.WorkflowNode{
				wfNode("in", graph.KindInput, map[string]any{"name": "topic"}, 0),
				wfNode("gen", graph.KindModelCall, map[string]any{"model": "openai/gpt-5"}, 100),
				wfNode("out", graph.KindOutput, map[string]any{"name": "result"}, 200),
			},
			Edges: []graph.Edge{wfEdge("in", "gen", "prompt"), wfEdge("gen", "out", "")},
		},
	}
}

type testEngine struct {
	*Engine
	models   *fakeModels
	txs      *fakeTransactions
	finished chan engine.Record
}

func newTestEngine(t *testing.T, balance int64) *testEngine {
	t.Helper()
	te := &testEngine{
		models:   &fakeModels{started: make(chan string, 8)},
		txs:      &fakeTransactions{},
		finished: make(chan engine.Record, 8),
	}
	ledger := &AuditedLedger{Ledger: credit.NewMemoryLedger(balance), txs: te.txs, logger: zerolog.Nop()}
	te.Engine = NewEngine(EngineOptions{
		Ledger:   ledger,
		Models:   te.models,
		OnFinish: func(rec engine.Record) { te.finished <- rec },
		Logger:   zerolog.Nop(),
	})
	t.Cleanup(te.Stop)
	return te
}

func (te *testEngine) waitFinished(t *testing.T) engine.Record {
	t.Helper()
	select {
	case rec := <-te.finished:
		return rec
	case <-time.After(5 * time.Second):
		t.Fatal("execution did not finish")
		return engine.Record{}
	}
}

func (te *testEngine) waitStarted(t *testing.T) {
	t.Helper()
	select {
	case <-te.models.started:
	case <-time.After(5 * time.Second):
		t.Fatal("model call did not start")
	}
}

func mustGet(t *testing.T, te *testEngine, id string) engine.Record {
	t.Helper()
	rec, err := te.Store.Get(context.Background(), id)
	require.NoError(t, err)
	return rec
}
