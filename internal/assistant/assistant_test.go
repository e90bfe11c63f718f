package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/finsight/finsight/internal/database"
	"github.com/finsight/finsight/internal/log"
	"github.com/finsight/finsight/internal/retrieval"
	"github.com/finsight/finsight/internal/router"
	"github.com/finsight/finsight/internal/session"
)

type fakeRouter struct{ route router.Route }

func (f *fakeRouter) Route(context.Context, string) router.Route { return f.route }

type fakeSearcher struct {
	chunks []retrieval.Chunk
	err    error
	calls  int
}

func (f *fakeSearcher) Search(context.Context, string) ([]retrieval.Chunk, error) {
	f.calls++
	return f.chunks, f.err
}

type fakeTranslator struct {
	sql string
	err error
}

func (f *fakeTranslator) Translate(context.Context, string) (string, error) {
	return f.sql, f.err
}

type fakeExecutor struct {
	result  *database.ResultSet
	err     error
	lastSQL string
}

func (f *fakeExecutor) Execute(_ context.Context, sql string) (*database.ResultSet, error) {
	f.lastSQL = sql
	return f.result, f.err
}

type fakeGenerator struct {
	response   string
	err        error
	lastPrompt string
	calls      int
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.calls++
	f.lastPrompt = prompt
	return f.response, f.err
}

type fakeTranscript struct {
	messages []session.Message
	err      error
}

func (f *fakeTranscript) AppendMessage(_ context.Context, sessionID uuid.UUID, role, content, route string) (*session.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	msg := session.Message{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Route:     route,
		Sequence:  len(f.messages) + 1,
	}
	f.messages = append(f.messages, msg)
	return &msg, nil
}

// longChunk is comfortably above the minimum context length.
func longChunk(title, content string) retrieval.Chunk {
	return retrieval.Chunk{
		Title:   title,
		Content: content + strings.Repeat(" More detail follows.", 5),
	}
}

type fixture struct {
	assistant *Assistant
	press     *fakeSearcher
	sec       *fakeSearcher
	gen       *fakeGenerator
	exec      *fakeExecutor
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	f := &fixture{
		press: &fakeSearcher{},
		sec:   &fakeSearcher{},
		gen:   &fakeGenerator{response: "synthesized answer"},
		exec:  &fakeExecutor{},
	}
	if cfg.Router == nil {
		cfg.Router = &fakeRouter{route: router.RoutePressReleases}
	}
	if cfg.Press == nil {
		cfg.Press = f.press
	} else {
		f.press = cfg.Press.(*fakeSearcher)
	}
	if cfg.SEC == nil {
		cfg.SEC = f.sec
	} else {
		f.sec = cfg.SEC.(*fakeSearcher)
	}
	if cfg.Translator == nil {
		cfg.Translator = &fakeTranslator{sql: "SELECT 1"}
	}
	if cfg.Executor == nil {
		cfg.Executor = f.exec
	} else {
		f.exec = cfg.Executor.(*fakeExecutor)
	}
	if cfg.Generator == nil {
		cfg.Generator = f.gen
	} else {
		f.gen = cfg.Generator.(*fakeGenerator)
	}
	cfg.Logger = log.NewNop()

	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	f.assistant = a
	return f
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	if err == nil {
		t.Error("New(empty config) expected error")
	}
}

func TestAskPressRoute(t *testing.T) {
	t.Parallel()

	press := &fakeSearcher{chunks: []retrieval.Chunk{
		longChunk("Q1 2025 Results", "Revenue grew 12% year over year."),
		longChunk("Dividend Declaration", "The board declared a quarterly dividend."),
	}}
	f := newFixture(t, Config{
		Router: &fakeRouter{route: router.RoutePressReleases},
		Press:  press,
	})

	answer, err := f.assistant.Ask(context.Background(), uuid.Nil, "how did the quarter go?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if answer.Route != router.RoutePressReleases {
		t.Errorf("Route = %q, want %q", answer.Route, router.RoutePressReleases)
	}
	if answer.Text != "synthesized answer" {
		t.Errorf("Text = %q", answer.Text)
	}
	if f.sec.calls != 0 {
		t.Errorf("sec searcher called %d times on press route", f.sec.calls)
	}
	if !strings.Contains(f.gen.lastPrompt, "Revenue grew 12%") {
		t.Error("prompt missing retrieved chunk content")
	}
	if !strings.Contains(f.gen.lastPrompt, "[Q1 2025 Results]") {
		t.Error("prompt missing chunk title")
	}
}

func TestAskSECRoute(t *testing.T) {
	t.Parallel()

	sec := &fakeSearcher{chunks: []retrieval.Chunk{
		longChunk("", "Risk factors include interest rate exposure."),
	}}
	f := newFixture(t, Config{
		Router: &fakeRouter{route: router.RouteSECReports},
		SEC:    sec,
	})

	answer, err := f.assistant.Ask(context.Background(), uuid.Nil, "what are the risks?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if answer.Route != router.RouteSECReports {
		t.Errorf("Route = %q, want %q", answer.Route, router.RouteSECReports)
	}
	if f.press.calls != 0 {
		t.Errorf("press searcher called %d times on sec route", f.press.calls)
	}
}

func TestAskStructuredRoute(t *testing.T) {
	t.Parallel()

	exec := &fakeExecutor{result: &database.ResultSet{
		Columns: []string{"metro_area", "total_revenue"},
		Rows: []database.Row{
			{"metro_area": "Dallas", "total_revenue": 1250000},
		},
	}}
	f := newFixture(t, Config{
		Router:     &fakeRouter{route: router.RouteStructuredData},
		Translator: &fakeTranslator{sql: "SELECT metro_area, SUM(revenue) AS total_revenue FROM financials GROUP BY 1"},
		Executor:   exec,
	})

	answer, err := f.assistant.Ask(context.Background(), uuid.Nil, "revenue by metro?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if answer.Route != router.RouteStructuredData {
		t.Errorf("Route = %q", answer.Route)
	}
	if !strings.Contains(exec.lastSQL, "SUM(revenue)") {
		t.Errorf("executed sql = %q", exec.lastSQL)
	}
	for _, want := range []string{"Dallas", "1250000", "metro_area | total_revenue"} {
		if !strings.Contains(f.gen.lastPrompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestAskDegradesToCannedAnswer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "retrieval failure",
			cfg: Config{
				Router: &fakeRouter{route: router.RoutePressReleases},
				Press:  &fakeSearcher{err: errors.New("connection refused")},
			},
			want: noPressResultsAnswer,
		},
		{
			name: "no chunks found",
			cfg: Config{
				Router: &fakeRouter{route: router.RouteSECReports},
				SEC:    &fakeSearcher{},
			},
			want: noSECResultsAnswer,
		},
		{
			name: "context below minimum",
			cfg: Config{
				Router: &fakeRouter{route: router.RoutePressReleases},
				Press:  &fakeSearcher{chunks: []retrieval.Chunk{{Content: "tiny"}}},
			},
			want: insufficientContextAnswer(router.RoutePressReleases),
		},
		{
			name: "translation failure",
			cfg: Config{
				Router:     &fakeRouter{route: router.RouteStructuredData},
				Translator: &fakeTranslator{err: errors.New("rejected")},
			},
			want: insufficientContextAnswer(router.RouteStructuredData),
		},
		{
			name: "execution failure",
			cfg: Config{
				Router:   &fakeRouter{route: router.RouteStructuredData},
				Executor: &fakeExecutor{err: errors.New("syntax error")},
			},
			want: insufficientContextAnswer(router.RouteStructuredData),
		},
		{
			name: "empty result set",
			cfg: Config{
				Router:   &fakeRouter{route: router.RouteStructuredData},
				Executor: &fakeExecutor{result: &database.ResultSet{Columns: []string{"a"}}},
			},
			want: insufficientContextAnswer(router.RouteStructuredData),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, tt.cfg)

			answer, err := f.assistant.Ask(context.Background(), uuid.Nil, "anything?")
			if err != nil {
				t.Fatalf("Ask() error = %v", err)
			}
			if answer.Text != tt.want {
				t.Errorf("Text = %q, want %q", answer.Text, tt.want)
			}
			if f.gen.calls != 0 {
				t.Errorf("generator called %d times, want 0", f.gen.calls)
			}
		})
	}
}

func TestAskSynthesisFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{
		Router:    &fakeRouter{route: router.RoutePressReleases},
		Press:     &fakeSearcher{chunks: []retrieval.Chunk{longChunk("News", "Plenty of relevant material here.")}},
		Generator: &fakeGenerator{err: errors.New("model overloaded")},
	})

	answer, err := f.assistant.Ask(context.Background(), uuid.Nil, "what happened?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if answer.Text != synthesisFailureAnswer {
		t.Errorf("Text = %q, want synthesis failure answer", answer.Text)
	}
}

func TestAskRecordsTranscript(t *testing.T) {
	t.Parallel()

	transcript := &fakeTranscript{}
	f := newFixture(t, Config{
		Router:     &fakeRouter{route: router.RoutePressReleases},
		Press:      &fakeSearcher{chunks: []retrieval.Chunk{longChunk("News", "Relevant material about earnings.")}},
		Transcript: transcript,
	})

	id := uuid.New()
	if _, err := f.assistant.Ask(context.Background(), id, "how were earnings?"); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	if len(transcript.messages) != 2 {
		t.Fatalf("recorded %d messages, want 2", len(transcript.messages))
	}
	if transcript.messages[0].Role != session.RoleUser || transcript.messages[0].Content != "how were earnings?" {
		t.Errorf("first message = %+v", transcript.messages[0])
	}
	if transcript.messages[1].Role != session.RoleAssistant {
		t.Errorf("second message role = %q", transcript.messages[1].Role)
	}
	if transcript.messages[1].Route != string(router.RoutePressReleases) {
		t.Errorf("answer route = %q", transcript.messages[1].Route)
	}
}

func TestAskNilSessionSkipsTranscript(t *testing.T) {
	t.Parallel()

	transcript := &fakeTranscript{}
	f := newFixture(t, Config{
		Router:     &fakeRouter{route: router.RoutePressReleases},
		Press:      &fakeSearcher{chunks: []retrieval.Chunk{longChunk("News", "Relevant material.")}},
		Transcript: transcript,
	})

	if _, err := f.assistant.Ask(context.Background(), uuid.Nil, "hello?"); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if len(transcript.messages) != 0 {
		t.Errorf("recorded %d messages for nil session, want 0", len(transcript.messages))
	}
}

func TestAskTranscriptFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{
		Router:     &fakeRouter{route: router.RoutePressReleases},
		Press:      &fakeSearcher{chunks: []retrieval.Chunk{longChunk("News", "Relevant material.")}},
		Transcript: &fakeTranscript{err: errors.New("disk full")},
	})

	if _, err := f.assistant.Ask(context.Background(), uuid.New(), "hello?"); err == nil {
		t.Error("Ask() expected error when transcript write fails")
	}
}

func TestAssembleChunks(t *testing.T) {
	t.Parallel()

	t.Run("blank line separation", func(t *testing.T) {
		t.Parallel()
		got := assembleChunks([]retrieval.Chunk{
			{Content: "first"},
			{Content: "second"},
		})
		if got != "first\n\nsecond" {
			t.Errorf("assembleChunks() = %q", got)
		}
	})

	t.Run("title prefix", func(t *testing.T) {
		t.Parallel()
		got := assembleChunks([]retrieval.Chunk{{Title: "Q1 Update", Content: "body"}})
		if got != "[Q1 Update] body" {
			t.Errorf("assembleChunks() = %q", got)
		}
	})

	t.Run("caps total length", func(t *testing.T) {
		t.Parallel()
		big := strings.Repeat("x", maxContextLength)
		got := assembleChunks([]retrieval.Chunk{{Content: big}, {Content: big}})
		if len(got) > maxContextLength {
			t.Errorf("len = %d, want <= %d", len(got), maxContextLength)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		t.Parallel()
		if got := assembleChunks(nil); got != "" {
			t.Errorf("assembleChunks(nil) = %q", got)
		}
	})
}

func TestFormatResultSet(t *testing.T) {
	t.Parallel()

	result := &database.ResultSet{
		Columns: []string{"name", "sf"},
		Rows: []database.Row{
			{"name": "Building 100", "sf": 52000},
			{"name": "Building 200", "sf": nil},
		},
	}

	got := formatResultSet("SELECT name, sf FROM properties", result)
	for _, want := range []string{"name | sf", "Building 100 | 52000", "Building 200 | NULL", "(2 rows)"} {
		if !strings.Contains(got, want) {
			t.Errorf("formatResultSet() missing %q in:\n%s", want, got)
		}
	}

	if got := formatResultSet("SELECT 1", nil); got != "" {
		t.Errorf("formatResultSet(nil) = %q", got)
	}
}
