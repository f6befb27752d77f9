package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/db"
)

// Log is the append-only audit trail. Record is safe for concurrent use
// from any number of writers; the id counter is the single point of
// serialization and establishes the total order of events.
type Log struct {
	db     *db.DB
	nextID atomic.Int64
}

// NewLog creates a Log backed by the given database. The id counter is
// seeded from the highest id already present so that ordering survives
// restarts.
func NewLog(database *db.DB) (*Log, error) {
	l := &Log{db: database}

	var maxID sql.NullInt64
	err := database.QueryRow("SELECT MAX(id) FROM audit_events").Scan(&maxID)
	if err != nil {
		return nil, fmt.Errorf("seeding audit counter: %w", err)
	}
	if maxID.Valid {
		l.nextID.Store(maxID.Int64)
	}

	return l, nil
}

// Record assigns the event the next id, stamps it if unstamped, and
// appends it. Record never fails for a well-formed event: a storage
// failure here is fatal to the process, because there is no degraded
// mode for losing the audit trail.
func (l *Log) Record(ctx context.Context, e Event) Event {
	e.ID = l.nextID.Add(1)
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	sources, err := json.Marshal(emptyIfNil(e.SourceFiles))
	if err != nil {
		log.Fatalf("audit: marshalling source files: %v", err)
	}
	outputs, err := json.Marshal(emptyIfNil(e.OutputFiles))
	if err != nil {
		log.Fatalf("audit: marshalling output files: %v", err)
	}
	params := []byte("{}")
	if e.Metadata.Parameters != nil {
		if params, err = json.Marshal(e.Metadata.Parameters); err != nil {
			log.Fatalf("audit: marshalling parameters: %v", err)
		}
	}

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO audit_events (
			id, timestamp, kind, actor, title, description,
			source_files, output_files, transformation_logic,
			confidence, records_processed, execution_time_ms,
			parameters, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.Timestamp.Format(time.RFC3339Nano),
		string(e.Kind),
		string(e.Actor),
		e.Title,
		e.Description,
		string(sources),
		string(outputs),
		e.TransformationLogic,
		nullFloat(e.Metadata.Confidence),
		nullInt(e.Metadata.RecordsProcessed),
		nullInt64(e.Metadata.ExecutionTimeMs),
		string(params),
		string(e.Status),
	)
	if err != nil {
		log.Fatalf("audit: recording event %d: %v", e.ID, err)
	}

	return e
}

// Query returns events matching the filter in ascending id order.
func (l *Log) Query(ctx context.Context, filter Filter) ([]Event, error) {
	var (
		clauses []string
		args    []any
	)

	if filter.Text != "" {
		clauses = append(clauses, "(LOWER(title) LIKE ? OR LOWER(description) LIKE ?)")
		pattern := "%" + strings.ToLower(filter.Text) + "%"
		args = append(args, pattern, pattern)
	}
	if filter.Kind != "" {
		clauses = append(clauses, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	if filter.Actor != "" {
		clauses = append(clauses, "actor = ?")
		args = append(args, string(filter.Actor))
	}

	query := `SELECT id, timestamp, kind, actor, title, description,
		source_files, output_files, transformation_logic,
		confidence, records_processed, execution_time_ms, parameters, status
		FROM audit_events`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// GetByID retrieves a single event.
func (l *Log) GetByID(ctx context.Context, id int64) (*Event, error) {
	row := l.db.QueryRowContext(ctx, `SELECT id, timestamp, kind, actor, title, description,
		source_files, output_files, transformation_logic,
		confidence, records_processed, execution_time_ms, parameters, status
		FROM audit_events WHERE id = ?`, id)
	return scanEvent(row)
}

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(sc scanner) (*Event, error) {
	var (
		e                            Event
		ts, kind, actor, status      string
		sourcesJSON, outputsJSON     string
		paramsJSON                   string
		confidence                   sql.NullFloat64
		recordsProcessed, execTimeMs sql.NullInt64
	)

	err := sc.Scan(
		&e.ID, &ts, &kind, &actor, &e.Title, &e.Description,
		&sourcesJSON, &outputsJSON, &e.TransformationLogic,
		&confidence, &recordsProcessed, &execTimeMs, &paramsJSON, &status,
	)
	if err != nil {
		return nil, err
	}

	e.Kind = EventKind(kind)
	e.Actor = Actor(actor)
	e.Status = Status(status)

	if t, parseErr := time.Parse(time.RFC3339Nano, ts); parseErr == nil {
		e.Timestamp = t
	}

	if err := json.Unmarshal([]byte(sourcesJSON), &e.SourceFiles); err != nil {
		e.SourceFiles = nil
	}
	if err := json.Unmarshal([]byte(outputsJSON), &e.OutputFiles); err != nil {
		e.OutputFiles = nil
	}
	if paramsJSON != "" && paramsJSON != "{}" {
		if err := json.Unmarshal([]byte(paramsJSON), &e.Metadata.Parameters); err != nil {
			e.Metadata.Parameters = nil
		}
	}

	if confidence.Valid {
		e.Metadata.Confidence = &confidence.Float64
	}
	if recordsProcessed.Valid {
		n := int(recordsProcessed.Int64)
		e.Metadata.RecordsProcessed = &n
	}
	if execTimeMs.Valid {
		e.Metadata.ExecutionTimeMs = &execTimeMs.Int64
	}

	return &e, nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
