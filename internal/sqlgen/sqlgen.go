// Package sqlgen translates natural-language questions about the structured
// property and financial tables into PostgreSQL queries.
//
// Generated SQL is never trusted: every statement passes through Validate,
// which rejects anything that is not a single read-only SELECT (or WITH)
// statement, before the executor runs it inside a read-only transaction.
package sqlgen

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Generator produces a text completion for a prompt.
// Satisfied by *llm.Client.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Translator converts questions into validated SELECT statements.
// Safe for concurrent use.
type Translator struct {
	gen    Generator
	logger *slog.Logger
}

// New creates a Translator.
func New(gen Generator, logger *slog.Logger) (*Translator, error) {
	if gen == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Translator{gen: gen, logger: logger}, nil
}

const translationPromptTemplate = `You are an expert PostgreSQL query generator. Convert the natural language question into a syntactically correct PostgreSQL query.

DATABASE SCHEMA:

Table: properties
  property_id     INTEGER PRIMARY KEY
  property_name   TEXT      -- e.g. 'Building 100'
  property_address TEXT
  metro_area      TEXT      -- e.g. 'Dallas', 'Atlanta'
  square_foot_sf  NUMERIC   -- rentable square feet
  property_type   TEXT      -- e.g. 'Industrial'

Table: financials
  id              INTEGER PRIMARY KEY
  property_id     INTEGER REFERENCES properties(property_id)
  year            INTEGER
  revenue         NUMERIC   -- annual revenue in USD
  net_income_usd  NUMERIC   -- annual net income in USD

IMPORTANT RULES:
1. Use ONLY the tables and columns listed above. Do not invent columns.
2. The square footage column is "square_foot_sf", NOT "square_feet" or "sqft".
3. The net income column is "net_income_usd", NOT "net_income".
4. Join financials to properties on property_id when the question mixes metrics with property attributes.
5. Generate exactly ONE SELECT statement. Never generate INSERT, UPDATE, DELETE, or DDL.
6. Respond with the SQL only. No explanation, no markdown.

EXAMPLES:

Question: What is the total square footage of all properties?
SQL: SELECT SUM(square_foot_sf) AS total_square_feet FROM properties;

Question: Which metro area generated the most revenue in 2024?
SQL: SELECT p.metro_area, SUM(f.revenue) AS total_revenue FROM financials f JOIN properties p ON p.property_id = f.property_id WHERE f.year = 2024 GROUP BY p.metro_area ORDER BY total_revenue DESC LIMIT 1;

Question: List the five largest properties with their net income for 2023.
SQL: SELECT p.property_name, p.square_foot_sf, f.net_income_usd FROM properties p JOIN financials f ON f.property_id = p.property_id WHERE f.year = 2023 ORDER BY p.square_foot_sf DESC LIMIT 5;

Question: %s
SQL:`

// Translate generates a validated SELECT statement answering question.
// The returned SQL has passed Validate; callers may still wrap execution in
// a read-only transaction as a second line of defense.
func (t *Translator) Translate(ctx context.Context, question string) (string, error) {
	raw, err := t.gen.Generate(ctx, fmt.Sprintf(translationPromptTemplate, question))
	if err != nil {
		return "", fmt.Errorf("generating sql: %w", err)
	}

	sql := stripFences(raw)
	if err := Validate(sql); err != nil {
		t.logger.Warn("generated sql rejected", "error", err, "sql", sql)
		return "", fmt.Errorf("generated sql rejected: %w", err)
	}

	t.logger.Debug("translated question to sql", "sql", sql)
	return sql, nil
}

// stripFences removes a surrounding markdown code fence, with or without a
// language tag, and trims whitespace. Models add fences despite instructions
// not to.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop the language tag on the opening fence line, if any.
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		first := strings.TrimSpace(s[:i])
		if first == "sql" || first == "" {
			s = s[i+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
