package sqlgen

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptySQL indicates the model produced no usable statement.
	ErrEmptySQL = errors.New("empty sql statement")

	// ErrNotReadOnly indicates the statement is not a SELECT or WITH query.
	ErrNotReadOnly = errors.New("statement is not read-only")

	// ErrMultipleStatements indicates more than one statement was produced.
	ErrMultipleStatements = errors.New("multiple sql statements")
)

// forbiddenKeywords are rejected anywhere in the statement, as whole words.
// A read-only transaction would also stop these, but rejecting early gives a
// clearer error and never touches the database.
var forbiddenKeywords = []string{
	"insert", "update", "delete", "drop", "alter", "create",
	"truncate", "grant", "revoke", "copy", "vacuum",
}

// Validate rejects sql unless it is a single read-only SELECT (or WITH)
// statement with no mutating keywords.
func Validate(sql string) error {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return ErrEmptySQL
	}

	// A single trailing semicolon is fine; anything after it is not.
	body := strings.TrimSuffix(trimmed, ";")
	if strings.Contains(body, ";") {
		return ErrMultipleStatements
	}

	lower := strings.ToLower(body)
	if !strings.HasPrefix(lower, "select") && !strings.HasPrefix(lower, "with") {
		return fmt.Errorf("%w: must start with SELECT or WITH", ErrNotReadOnly)
	}

	for _, word := range strings.FieldsFunc(lower, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9' || r == '_')
	}) {
		for _, kw := range forbiddenKeywords {
			if word == kw {
				return fmt.Errorf("%w: forbidden keyword %q", ErrNotReadOnly, kw)
			}
		}
	}

	return nil
}
