package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// statementTimeout bounds a single generated-SQL statement.
const statementTimeout = 30 * time.Second

// Row is a single result row keyed by column name.
type Row map[string]any

// ResultSet is the outcome of executing a statement that succeeded.
// Columns preserves the column order of the statement; Rows is empty for
// statements that produce no result set.
type ResultSet struct {
	Columns      []string
	Rows         []Row
	RowsAffected int64
}

// Executor runs SQL statements against the pool inside a read-only
// transaction. It exists for model-generated SQL: the statement text is not
// trusted, so execution is fenced to reads and a failure comes back as an
// error value, never a panic.
//
// Executor is safe for concurrent use.
type Executor struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewExecutor creates an Executor backed by pool.
func NewExecutor(pool *pgxpool.Pool, logger *slog.Logger) (*Executor, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{pool: pool, logger: logger}, nil
}

// Execute runs sql inside a read-only transaction and returns its rows.
// Every failure path returns a structured error; callers never need to
// inspect the rows for an embedded error marker.
func (e *Executor) Execute(ctx context.Context, sql string) (*ResultSet, error) {
	ctx, cancel := context.WithTimeout(ctx, statementTimeout)
	defer cancel()

	tx, err := e.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("beginning read-only transaction: %w", err)
	}
	// Read-only work: rollback is always the right way out.
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && rbErr != pgx.ErrTxClosed {
			e.logger.Warn("rolling back executor transaction", "error", rbErr)
		}
	}()

	rows, err := tx.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("executing statement: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, fd := range fields {
		columns[i] = fd.Name
	}

	result := &ResultSet{Columns: columns}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("reading row values: %w", err)
		}
		row := make(Row, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	result.RowsAffected = rows.CommandTag().RowsAffected()

	e.logger.Debug("executed statement",
		"columns", len(result.Columns),
		"rows", len(result.Rows))
	return result, nil
}
