package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"ContentOrchestrator/internal/domain"
	"ContentOrchestrator/internal/ports"
)

// ErrNotFound is returned when a write matches no task row.
var ErrNotFound = errors.New("task not found")

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var taskColumns = []string{"id", "prompt", "priority", "status", "category", "created_at", "updated_at"}

// PostgresTaskSource reads pending tasks from a Postgres table and writes results back.
// Result fields accumulate in a jsonb "results" column; error notes in "error_log".
type PostgresTaskSource struct {
	db    *sql.DB
	table string
}

var _ ports.TaskSource = (*PostgresTaskSource)(nil)

// NewPostgresTaskSource wires a sql.DB implementation against table.
func NewPostgresTaskSource(db *sql.DB, table string) *PostgresTaskSource {
	if table == "" {
		table = "content_tasks"
	}
	return &PostgresTaskSource{db: db, table: pq.QuoteIdentifier(table)}
}

// Open connects with the lib/pq driver and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Ping checks database connectivity.
func (s *PostgresTaskSource) Ping(ctx context.Context) error {
	if s.db == nil {
		return errors.New("ping: no database")
	}
	return s.db.PingContext(ctx)
}

func (s *PostgresTaskSource) ListPending(ctx context.Context, filter ports.TaskFilter) ([]domain.Task, error) {
	if s.db == nil {
		return nil, errors.New("list pending: no database")
	}

	query, args, err := s.listQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pending: %w", err)
	}

	var tasks []domain.Task
	for rows.Next() {
		var (
			task               domain.Task
			priority           string
			status, category   sql.NullString
			createdAt, updated sql.NullTime
		)
		if err := rows.Scan(&task.ID, &task.Prompt, &priority, &status, &category, &createdAt, &updated); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan task: %w", err)
		}
		task.Ref = task.ID
		task.Row = len(tasks) + 1
		task.Priority = domain.ParsePriority(priority)
		task.Status = domain.TaskStatus(status.String)
		task.Category = category.String
		task.CreatedAt = createdAt.Time
		task.UpdatedAt = updated.Time
		tasks = append(tasks, task)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return tasks, nil
}

func (s *PostgresTaskSource) UpdateStatus(ctx context.Context, ref string, status domain.TaskStatus, extra map[string]string) error {
	b, err := s.statusUpdate(ref, status, extra)
	if err != nil {
		return fmt.Errorf("update status %s: %w", ref, err)
	}
	return s.exec(ctx, "update status", ref, b)
}

func (s *PostgresTaskSource) SaveResults(ctx context.Context, ref string, fields map[string]string) error {
	b, err := s.resultsUpdate(ref, fields)
	if err != nil {
		return fmt.Errorf("save results %s: %w", ref, err)
	}
	return s.exec(ctx, "save results", ref, b)
}

func (s *PostgresTaskSource) LogError(ctx context.Context, ref, message string, category domain.ErrorCategory) error {
	return s.exec(ctx, "log error", ref, s.errorUpdate(ref, domain.ErrorNote(time.Now(), category, message)))
}

func (s *PostgresTaskSource) listQuery(filter ports.TaskFilter) sq.SelectBuilder {
	q := psql.Select(taskColumns...).From(s.table).
		Where(statusPredicate(filter.Statuses)).
		Where("btrim(COALESCE(prompt, '')) <> ''")
	if filter.Priority != nil {
		p := *filter.Priority
		q = q.Where(sq.Eq{"priority": []string{p.String(), strconv.Itoa(int(p))}})
	}
	return q.OrderBy("created_at ASC", "id ASC")
}

func (s *PostgresTaskSource) statusUpdate(ref string, status domain.TaskStatus, extra map[string]string) (sq.UpdateBuilder, error) {
	b := psql.Update(s.table).
		Set("status", string(status)).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": ref})
	if len(extra) == 0 {
		return b, nil
	}
	expr, err := mergeResults(extra)
	if err != nil {
		return b, err
	}
	return b.Set("results", expr), nil
}

func (s *PostgresTaskSource) resultsUpdate(ref string, fields map[string]string) (sq.UpdateBuilder, error) {
	expr, err := mergeResults(fields)
	if err != nil {
		return sq.UpdateBuilder{}, err
	}
	return psql.Update(s.table).
		Set("results", expr).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": ref}), nil
}

func (s *PostgresTaskSource) errorUpdate(ref, note string) sq.UpdateBuilder {
	return psql.Update(s.table).
		Set("error_log", sq.Expr("concat_ws(E'\\n', NULLIF(error_log, ''), ?::text)", note)).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": ref})
}

func (s *PostgresTaskSource) exec(ctx context.Context, op, ref string, b sq.UpdateBuilder) error {
	if s.db == nil {
		return fmt.Errorf("%s %s: no database", op, ref)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build %s: %w", op, err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s %s: %w", op, ref, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s %s: %w", op, ref, ErrNotFound)
	}
	return nil
}

// statusPredicate treats blank and NULL statuses as pending.
func statusPredicate(statuses []domain.TaskStatus) sq.Sqlizer {
	if len(statuses) == 0 {
		statuses = []domain.TaskStatus{domain.StatusPending, ""}
	}
	or := sq.Or{}
	for _, st := range statuses {
		if st == "" {
			or = append(or, sq.Eq{"status": nil}, sq.Eq{"status": ""})
			continue
		}
		or = append(or, sq.Eq{"status": string(st)})
	}
	return or
}

func mergeResults(fields map[string]string) (sq.Sqlizer, error) {
	payload, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	return sq.Expr("COALESCE(results, '{}'::jsonb) || ?::jsonb", string(payload)), nil
}
