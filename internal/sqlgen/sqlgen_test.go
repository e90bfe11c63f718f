package sqlgen

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/finsight/finsight/internal/log"
)

type generatorFunc func(ctx context.Context, prompt string) (string, error)

func (f generatorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

func TestNew(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, log.NewNop()); err == nil {
		t.Error("New(nil) expected error")
	}
}

func TestTranslate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		response string
		genErr   error
		want     string
		wantErr  bool
	}{
		{
			name:     "plain select",
			response: "SELECT SUM(square_foot_sf) FROM properties;",
			want:     "SELECT SUM(square_foot_sf) FROM properties;",
		},
		{
			name:     "fenced with language tag",
			response: "```sql\nSELECT metro_area FROM properties\n```",
			want:     "SELECT metro_area FROM properties",
		},
		{
			name:     "fenced without language tag",
			response: "```\nSELECT 1\n```",
			want:     "SELECT 1",
		},
		{
			name:    "model failure",
			genErr:  errors.New("deadline exceeded"),
			wantErr: true,
		},
		{
			name:     "mutation rejected",
			response: "DELETE FROM financials",
			wantErr:  true,
		},
		{
			name:     "stacked statements rejected",
			response: "SELECT 1; DROP TABLE properties",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tr, err := New(generatorFunc(func(context.Context, string) (string, error) {
				return tt.response, tt.genErr
			}), log.NewNop())
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}

			got, err := tr.Translate(context.Background(), "how big is the portfolio?")
			if (err != nil) != tt.wantErr {
				t.Fatalf("Translate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Translate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTranslatePromptContainsQuestionAndSchema(t *testing.T) {
	t.Parallel()

	var captured string
	tr, err := New(generatorFunc(func(_ context.Context, prompt string) (string, error) {
		captured = prompt
		return "SELECT 1", nil
	}), log.NewNop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := tr.Translate(context.Background(), "total revenue in Dallas"); err != nil {
		t.Fatalf("Translate() error = %v", err)
	}

	for _, want := range []string{"total revenue in Dallas", "square_foot_sf", "net_income_usd", "metro_area"} {
		if !strings.Contains(captured, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestStripFences(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fence", "SELECT 1", "SELECT 1"},
		{"sql fence", "```sql\nSELECT 1\n```", "SELECT 1"},
		{"bare fence", "```\nSELECT 1\n```", "SELECT 1"},
		{"surrounding whitespace", "  \n```sql\nSELECT 1\n```\n  ", "SELECT 1"},
		{"multiline body", "```sql\nSELECT a,\n       b\nFROM t\n```", "SELECT a,\n       b\nFROM t"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := stripFences(tt.in); got != tt.want {
				t.Errorf("stripFences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		sql     string
		wantErr error
	}{
		{"simple select", "SELECT * FROM properties", nil},
		{"select with semicolon", "SELECT 1;", nil},
		{"cte", "WITH top AS (SELECT 1) SELECT * FROM top", nil},
		{"case insensitive", "select sum(revenue) from financials", nil},
		{"empty", "   ", ErrEmptySQL},
		{"insert", "INSERT INTO properties VALUES (1)", ErrNotReadOnly},
		{"update", "UPDATE financials SET revenue = 0", ErrNotReadOnly},
		{"delete disguised by case", "DeLeTe FROM properties", ErrNotReadOnly},
		{"drop inside select", "SELECT 1; DROP TABLE properties", ErrMultipleStatements},
		{"mutating cte", "WITH x AS (DELETE FROM financials RETURNING *) SELECT * FROM x", ErrNotReadOnly},
		{"explain", "EXPLAIN SELECT 1", ErrNotReadOnly},
		{"column named like keyword ok", "SELECT updated_at FROM sessions", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Validate(tt.sql)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate(%q) error = %v, want nil", tt.sql, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate(%q) error = %v, want %v", tt.sql, err, tt.wantErr)
			}
		})
	}
}
