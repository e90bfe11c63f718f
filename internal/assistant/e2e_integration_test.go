package assistant_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/finsight/finsight/internal/assistant"
	"github.com/finsight/finsight/internal/database"
	"github.com/finsight/finsight/internal/llm"
	"github.com/finsight/finsight/internal/log"
	"github.com/finsight/finsight/internal/retrieval"
	"github.com/finsight/finsight/internal/router"
	"github.com/finsight/finsight/internal/session"
	"github.com/finsight/finsight/internal/sqlgen"
	"github.com/finsight/finsight/internal/testutil"
)

// pipeline bundles a fully wired assistant backed by a real database and
// mocked model + embedders.
type pipeline struct {
	assistant *assistant.Assistant
	sessions  *session.Store
	model     *testutil.MockLLM
	press     *testutil.MockEmbedder
	db        *testutil.TestDB
}

func newPipeline(t *testing.T, model *testutil.MockLLM) *pipeline {
	t.Helper()
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	g := genkit.Init(ctx)
	nop := log.NewNop()

	model.RegisterModel(g)
	client, err := llm.New(llm.Config{Genkit: g, ModelName: "mock/test-model", Logger: nop})
	if err != nil {
		t.Fatalf("llm.New() error = %v", err)
	}

	pressEmbedder := testutil.NewMockEmbedder(768)
	secEmbedder := testutil.NewMockEmbedder(1536)

	rt, err := router.New(client, nop)
	if err != nil {
		t.Fatalf("router.New() error = %v", err)
	}
	press, err := retrieval.NewPressStore(db.Pool, pressEmbedder.RegisterEmbedder(g), 20, nop)
	if err != nil {
		t.Fatalf("NewPressStore() error = %v", err)
	}
	sec, err := retrieval.NewSECStore(db.Pool, secEmbedder.RegisterEmbedder(g), 10, nop)
	if err != nil {
		t.Fatalf("NewSECStore() error = %v", err)
	}
	translator, err := sqlgen.New(client, nop)
	if err != nil {
		t.Fatalf("sqlgen.New() error = %v", err)
	}
	executor, err := database.NewExecutor(db.Pool, nop)
	if err != nil {
		t.Fatalf("NewExecutor() error = %v", err)
	}
	sessions, err := session.NewStore(db.Pool, nop)
	if err != nil {
		t.Fatalf("session.NewStore() error = %v", err)
	}

	a, err := assistant.New(assistant.Config{
		Router:     rt,
		Press:      press,
		SEC:        sec,
		Translator: translator,
		Executor:   executor,
		Generator:  client,
		Transcript: sessions,
		Logger:     nop,
	})
	if err != nil {
		t.Fatalf("assistant.New() error = %v", err)
	}
	return &pipeline{assistant: a, sessions: sessions, model: model, press: pressEmbedder, db: db}
}

// The structured path: route to the database, translate to SQL, execute
// read-only, and synthesize over the formatted result set.
func TestAskStructuredQuestionEndToEnd(t *testing.T) {
	model := testutil.NewMockLLM("We currently have 2 properties in the portfolio.")
	model.AddResponse("one word only", "structured_data")
	model.AddResponse("square_foot_sf", "SELECT COUNT(*) AS property_count FROM properties")
	p := newPipeline(t, model)
	ctx := context.Background()

	for _, id := range []int{1, 2} {
		_, err := p.db.Pool.Exec(ctx,
			`INSERT INTO properties (property_id, property_name, property_address, metro_area, square_foot_sf, property_type)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			id, fmt.Sprintf("Industrial Park %d", id), "1 Industrial Way", "Dallas", 500000, "distribution",
		)
		if err != nil {
			t.Fatalf("seeding property %d: %v", id, err)
		}
	}

	answer, err := p.assistant.Ask(ctx, uuid.Nil, "How many properties do we have?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if answer.Route != router.RouteStructuredData {
		t.Errorf("Route = %q, want %q", answer.Route, router.RouteStructuredData)
	}
	if answer.Text != "We currently have 2 properties in the portfolio." {
		t.Errorf("Text = %q, want synthesized count answer", answer.Text)
	}

	calls := p.model.Calls()
	if len(calls) != 3 {
		t.Fatalf("model calls = %d, want 3 (route, translate, synthesize)", len(calls))
	}
	if !strings.Contains(calls[2], "property_count") {
		t.Errorf("synthesis prompt missing query result, got %q", calls[2])
	}
}

// The press path with the recent-quarter override: no routing model call,
// vector retrieval feeds the synthesis prompt, and the exchange lands in the
// session transcript.
func TestAskQuarterlyQuestionEndToEnd(t *testing.T) {
	model := testutil.NewMockLLM("Q1 2025 earnings included a $0.96 per share dividend.")
	p := newPipeline(t, model)
	ctx := context.Background()

	question := "Show me the dividend announcement from the Q1 2025 earnings"
	queryVec := make([]float32, 768)
	queryVec[0] = 1
	p.press.SetVector(question, queryVec)

	content := "The board of directors declared a quarterly cash dividend of $0.96 per share, " +
		"payable to shareholders of record as of March 14, 2025."
	_, err := p.db.Pool.Exec(ctx,
		`INSERT INTO press_releases (source_url, title, chunk_index, content, embedding)
		 VALUES ($1, $2, $3, $4, $5)`,
		"https://ir.example.com/press-releases/q1-2025-dividend",
		"Q1 2025 Dividend Announcement", 0, content, pgvector.NewVector(queryVec),
	)
	if err != nil {
		t.Fatalf("seeding press release: %v", err)
	}

	sess, err := p.sessions.CreateSession(ctx, "")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	answer, err := p.assistant.Ask(ctx, sess.ID, question)
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if answer.Route != router.RoutePressReleases {
		t.Errorf("Route = %q, want %q", answer.Route, router.RoutePressReleases)
	}
	if answer.Text != "Q1 2025 earnings included a $0.96 per share dividend." {
		t.Errorf("Text = %q, want synthesized dividend answer", answer.Text)
	}

	// The override decides the route, so the only model call is synthesis.
	calls := p.model.Calls()
	if len(calls) != 1 {
		t.Fatalf("model calls = %d, want 1 (synthesis only)", len(calls))
	}
	if !strings.Contains(calls[0], "$0.96") {
		t.Errorf("synthesis prompt missing retrieved chunk, got %q", calls[0])
	}

	messages, err := p.sessions.Messages(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("transcript length = %d, want 2", len(messages))
	}
	if messages[0].Role != session.RoleUser || messages[0].Content != question {
		t.Errorf("first message = %s %q, want user question", messages[0].Role, messages[0].Content)
	}
	if messages[1].Role != session.RoleAssistant || messages[1].Route != string(router.RoutePressReleases) {
		t.Errorf("second message = %s route=%q, want assistant press_releases", messages[1].Role, messages[1].Route)
	}
}
