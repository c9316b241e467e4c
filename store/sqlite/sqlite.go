/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements fees.Repository and generic.AuditLog using SQLite. The schema
  is versioned with goose migrations embedded in the binary.

INTERFACES IMPLEMENTED:
  fees.Repository:  Years, fees, adjustment ledger, disablement history
  generic.AuditLog: Who did what when

APPEND-ONLY ENFORCEMENT:
  - No UPDATE or DELETE statements on adjustments or disable_events
  - Corrections are new adjustments in the opposite direction
  - idempotency_key is UNIQUE; a replay fails with ErrDuplicateIdempotencyKey

KEY TABLES:
  years, terms:    Academic calendar (sequence is UNIQUE)
  fees:            Fee items with their current disablement record
  adjustments:     Immutable ledger of price changes
  disable_events:  Immutable enable/disable history
  ledger_version:  Single row bumped on every write, keys resolution caches
  audit_log:       Audit trail

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single connection, so
  ":memory:" databases survive across calls.

USAGE:
  store, err := sqlite.New("./data/fees.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := fees.NewService(store, store, logger)

SEE ALSO:
  - fees/ledger.go: Repository contract
  - store/memory: In-memory implementation for testing
  - migrations/: goose migrations
*/
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"

	"github.com/Mukisa95/Trinity-Family-school-sub002/calendar"
	"github.com/Mukisa95/Trinity-Family-school-sub002/fees"
	"github.com/Mukisa95/Trinity-Family-school-sub002/generic"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ fees.Repository  = (*Store)(nil)
	_ generic.AuditLog = (*Store)(nil)
)

// New creates a new SQLite store with the given database path and applies
// pending migrations. Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.Up(db, "migrations")
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// withTx runs fn in a transaction and bumps the ledger version before
// committing. Callers hold s.mu.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE ledger_version SET version = version + 1 WHERE id = 1`); err != nil {
		return fmt.Errorf("%w: bump version: %v", generic.ErrTransactionFailed, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", generic.ErrTransactionFailed, err)
	}
	return nil
}

// LedgerVersion returns the write counter.
func (s *Store) LedgerVersion(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var v int64
	err := s.db.QueryRowContext(ctx, `SELECT version FROM ledger_version WHERE id = 1`).Scan(&v)
	return v, err
}

// =============================================================================
// CALENDAR
// =============================================================================

// SaveYear upserts a year and replaces its terms.
func (s *Store) SaveYear(ctx context.Context, year calendar.AcademicYear) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO years (id, name, sequence, is_locked) VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name, sequence = excluded.sequence, is_locked = excluded.is_locked
		`, string(year.ID), year.Name, year.Sequence, year.IsLocked)
		if err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("year %s sequence %d: %w", year.ID, year.Sequence, generic.ErrDuplicateYear)
			}
			return fmt.Errorf("failed to save year: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM terms WHERE year_id = ?`, string(year.ID)); err != nil {
			return fmt.Errorf("failed to replace terms: %w", err)
		}
		for _, t := range year.Terms {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO terms (id, year_id, name, start_date, end_date, is_current)
				VALUES (?, ?, ?, ?, ?, ?)
			`, t.ID, string(year.ID), t.Name, formatTime(t.Start), formatTime(t.End), t.IsCurrent)
			if err != nil {
				return fmt.Errorf("failed to save term %s: %w", t.ID, err)
			}
		}
		return nil
	})
}

// ListYears returns every year with its terms, ordered by sequence.
func (s *Store) ListYears(ctx context.Context) ([]calendar.AcademicYear, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, sequence, is_locked FROM years ORDER BY sequence`)
	if err != nil {
		return nil, fmt.Errorf("failed to query years: %w", err)
	}
	var years []calendar.AcademicYear
	index := make(map[generic.YearID]int)
	for rows.Next() {
		var y calendar.AcademicYear
		var id string
		if err := rows.Scan(&id, &y.Name, &y.Sequence, &y.IsLocked); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan year: %w", err)
		}
		y.ID = generic.YearID(id)
		index[y.ID] = len(years)
		years = append(years, y)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	trows, err := s.db.QueryContext(ctx, `
		SELECT id, year_id, name, start_date, end_date, is_current FROM terms ORDER BY start_date
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query terms: %w", err)
	}
	defer trows.Close()
	for trows.Next() {
		var (
			t          calendar.Term
			yearID     string
			start, end string
		)
		if err := trows.Scan(&t.ID, &yearID, &t.Name, &start, &end, &t.IsCurrent); err != nil {
			return nil, fmt.Errorf("failed to scan term: %w", err)
		}
		t.YearID = generic.YearID(yearID)
		t.Start = parseTime(start)
		t.End = parseTime(end)
		if i, ok := index[t.YearID]; ok {
			years[i].Terms = append(years[i].Terms, t)
		}
	}
	return years, trows.Err()
}

// =============================================================================
// FEES
// =============================================================================

// SaveFee upserts a fee item including its current disablement record.
func (s *Store) SaveFee(ctx context.Context, fee fees.FeeItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	classJSON, _ := json.Marshal(fee.Targeting.ClassIDs)
	sectionJSON, _ := json.Marshal(fee.Targeting.SectionIDs)

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO fees
			(id, name, amount, direction, category, year_id, term_id, class_ids_json, section_ids_json,
			 is_required, is_recurring, frequency, linked_fee_id,
			 disabled, disable_scope_type, disable_start_year_id, disable_end_year_id, disabled_since, disable_reason,
			 created_by, created_at, position)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
			        (SELECT COALESCE(MAX(position), 0) + 1 FROM fees))
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name, amount = excluded.amount, direction = excluded.direction,
				category = excluded.category, year_id = excluded.year_id, term_id = excluded.term_id,
				class_ids_json = excluded.class_ids_json, section_ids_json = excluded.section_ids_json,
				is_required = excluded.is_required, is_recurring = excluded.is_recurring,
				frequency = excluded.frequency, linked_fee_id = excluded.linked_fee_id,
				disabled = excluded.disabled, disable_scope_type = excluded.disable_scope_type,
				disable_start_year_id = excluded.disable_start_year_id,
				disable_end_year_id = excluded.disable_end_year_id,
				disabled_since = excluded.disabled_since, disable_reason = excluded.disable_reason
		`,
			string(fee.ID), fee.Name, fee.Amount.Magnitude.String(), string(fee.Amount.Direction),
			string(fee.Category), nullString(string(fee.YearID)), nullString(fee.TermID),
			string(classJSON), string(sectionJSON),
			fee.IsRequired, fee.IsRecurring, string(fee.Frequency), nullString(string(fee.LinkedFeeID)),
			fee.State.Disabled, nullString(string(fee.State.Scope.Type)),
			nullString(string(fee.State.Scope.StartYearID)), nullString(string(fee.State.Scope.EndYearID)),
			nullTime(fee.State.Since), nullString(fee.State.Reason),
			fee.CreatedBy, formatTime(fee.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to save fee: %w", err)
		}
		return nil
	})
}

const feeColumns = `
	id, name, amount, direction, category, year_id, term_id, class_ids_json, section_ids_json,
	is_required, is_recurring, frequency, linked_fee_id,
	disabled, disable_scope_type, disable_start_year_id, disable_end_year_id, disabled_since, disable_reason,
	created_by, created_at
`

// GetFee retrieves a fee by ID. Returns nil, nil when it does not exist.
func (s *Store) GetFee(ctx context.Context, id fees.FeeID) (*fees.FeeItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+feeColumns+` FROM fees WHERE id = ?`, string(id))
	if err != nil {
		return nil, fmt.Errorf("failed to query fee: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	fee, err := scanFee(rows)
	if err != nil {
		return nil, err
	}
	return &fee, nil
}

// ListFees returns all fees in creation order.
func (s *Store) ListFees(ctx context.Context) ([]fees.FeeItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+feeColumns+` FROM fees ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query fees: %w", err)
	}
	defer rows.Close()

	var out []fees.FeeItem
	for rows.Next() {
		fee, err := scanFee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, fee)
	}
	return out, rows.Err()
}

func scanFee(rows *sql.Rows) (fees.FeeItem, error) {
	var (
		f                                    fees.FeeItem
		id, amount, direction, category      string
		yearID, termID, linked               sql.NullString
		classJSON, sectionJSON               sql.NullString
		frequency                            string
		scopeType, startYear, endYear, since sql.NullString
		reason                               sql.NullString
		createdAt                            string
	)
	err := rows.Scan(
		&id, &f.Name, &amount, &direction, &category, &yearID, &termID, &classJSON, &sectionJSON,
		&f.IsRequired, &f.IsRecurring, &frequency, &linked,
		&f.State.Disabled, &scopeType, &startYear, &endYear, &since, &reason,
		&f.CreatedBy, &createdAt,
	)
	if err != nil {
		return f, fmt.Errorf("failed to scan fee: %w", err)
	}

	f.ID = fees.FeeID(id)
	f.Amount = generic.Money{Magnitude: parseDecimal(amount), Direction: generic.Direction(direction)}
	f.Category = fees.Category(category)
	f.YearID = generic.YearID(yearID.String)
	f.TermID = termID.String
	f.Frequency = fees.Frequency(frequency)
	f.LinkedFeeID = fees.FeeID(linked.String)
	f.CreatedAt = parseTime(createdAt)
	if classJSON.Valid {
		if err := json.Unmarshal([]byte(classJSON.String), &f.Targeting.ClassIDs); err != nil {
			return f, fmt.Errorf("failed to scan fee %s class ids: %w", id, err)
		}
	}
	if sectionJSON.Valid {
		if err := json.Unmarshal([]byte(sectionJSON.String), &f.Targeting.SectionIDs); err != nil {
			return f, fmt.Errorf("failed to scan fee %s section ids: %w", id, err)
		}
	}
	if f.State.Disabled {
		f.State.Scope = generic.TemporalScope{
			Type:        generic.ScopeType(scopeType.String),
			StartYearID: generic.YearID(startYear.String),
			EndYearID:   generic.YearID(endYear.String),
		}
		f.State.Since = parseTime(since.String)
		f.State.Reason = reason.String
	}
	return f, nil
}

// =============================================================================
// ADJUSTMENT LEDGER - Append-only
// =============================================================================

// AppendAdjustment adds an entry to the ledger.
func (s *Store) AppendAdjustment(ctx context.Context, adj fees.AdjustmentEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return appendAdjustment(ctx, tx, adj)
	})
}

func appendAdjustment(ctx context.Context, db execer, adj fees.AdjustmentEntry) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO adjustments
		(id, fee_id, adjustment_type, amount, scope_type, start_year_id, end_year_id,
		 reason, idempotency_key, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		adj.ID, string(adj.FeeID), string(adj.Type), adj.Amount.String(),
		string(adj.Scope.Type), string(adj.Scope.StartYearID), nullString(string(adj.Scope.EndYearID)),
		nullString(adj.Reason), nullString(adj.IdempotencyKey), adj.CreatedBy, formatTime(adj.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to append adjustment: %w", err)
	}
	return nil
}

// AdjustmentExists checks if an idempotency key exists.
func (s *Store) AdjustmentExists(ctx context.Context, idempotencyKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM adjustments WHERE idempotency_key = ?",
		idempotencyKey,
	).Scan(&count)
	return count > 0, err
}

// ListAdjustments returns the whole ledger in append order.
func (s *Store) ListAdjustments(ctx context.Context) ([]fees.AdjustmentEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, fee_id, adjustment_type, amount, scope_type, start_year_id, end_year_id,
		       reason, idempotency_key, created_by, created_at
		FROM adjustments
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query adjustments: %w", err)
	}
	defer rows.Close()

	var out []fees.AdjustmentEntry
	for rows.Next() {
		var (
			a                                fees.AdjustmentEntry
			feeID, typ, amount, scope, start string
			end, reason, key                 sql.NullString
			createdAt                        string
		)
		if err := rows.Scan(&a.ID, &feeID, &typ, &amount, &scope, &start, &end,
			&reason, &key, &a.CreatedBy, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan adjustment: %w", err)
		}
		a.FeeID = fees.FeeID(feeID)
		a.Type = fees.AdjustmentType(typ)
		a.Amount = parseDecimal(amount)
		a.Scope = generic.TemporalScope{
			Type:        generic.ScopeType(scope),
			StartYearID: generic.YearID(start),
			EndYearID:   generic.YearID(end.String),
		}
		a.Reason = reason.String
		a.IdempotencyKey = key.String
		a.CreatedAt = parseTime(createdAt)
		out = append(out, a)
	}
	return out, rows.Err()
}

// =============================================================================
// DISABLEMENT
// =============================================================================

// RecordDisablement replaces the current state and appends the history
// event in one transaction. An event whose ID is already recorded is not
// appended again.
func (s *Store) RecordDisablement(ctx context.Context, id fees.FeeID, state fees.Disablement, event fees.DisableEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE fees SET disabled = ?, disable_scope_type = ?, disable_start_year_id = ?,
			       disable_end_year_id = ?, disabled_since = ?, disable_reason = ?
			WHERE id = ?
		`,
			state.Disabled, nullString(string(state.Scope.Type)),
			nullString(string(state.Scope.StartYearID)), nullString(string(state.Scope.EndYearID)),
			nullTime(state.Since), nullString(state.Reason), string(id),
		)
		if err != nil {
			return fmt.Errorf("failed to update fee state: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return &generic.ReferenceError{Kind: "fee", ID: string(id), Err: generic.ErrFeeNotFound}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO disable_events (id, fee_id, action, scope_type, start_year_id, end_year_id, reason, actor_id, at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`,
			event.ID, string(id), string(event.Action), string(event.Scope.Type),
			nullString(string(event.Scope.StartYearID)), nullString(string(event.Scope.EndYearID)),
			nullString(event.Reason), event.ActorID, formatTime(event.At),
		)
		if err != nil {
			return fmt.Errorf("failed to append history: %w", err)
		}
		return nil
	})
}

// History returns the fee's enable/disable events, oldest first.
func (s *Store) History(ctx context.Context, id fees.FeeID) ([]fees.DisableEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, fee_id, action, scope_type, start_year_id, end_year_id, reason, actor_id, at
		FROM disable_events WHERE fee_id = ? ORDER BY seq ASC
	`, string(id))
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var out []fees.DisableEvent
	for rows.Next() {
		var (
			e                        fees.DisableEvent
			feeID, action, scope, at string
			start, end, reason       sql.NullString
		)
		if err := rows.Scan(&e.ID, &feeID, &action, &scope, &start, &end, &reason, &e.ActorID, &at); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		e.FeeID = fees.FeeID(feeID)
		e.Action = fees.DisableAction(action)
		e.Scope = generic.TemporalScope{
			Type:        generic.ScopeType(scope),
			StartYearID: generic.YearID(start.String),
			EndYearID:   generic.YearID(end.String),
		}
		e.Reason = reason.String
		e.At = parseTime(at)
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// AUDIT LOG (generic.AuditLog interface)
// =============================================================================

func (s *Store) Append(ctx context.Context, entry generic.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode audit payload: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, timestamp, actor_id, action, fee_id, payload_json)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.ID, formatTime(entry.Timestamp), entry.ActorID, string(entry.Action),
		nullString(entry.FeeID), string(payload))
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// Query returns matching audit entries, newest first.
func (s *Store) Query(ctx context.Context, filter generic.AuditFilter) ([]generic.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		where []string
		args  []any
	)
	if filter.FeeID != nil {
		where = append(where, "fee_id = ?")
		args = append(args, *filter.FeeID)
	}
	if filter.ActorID != nil {
		where = append(where, "actor_id = ?")
		args = append(args, *filter.ActorID)
	}
	query := `SELECT id, timestamp, actor_id, action, fee_id, payload_json FROM audit_log`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var out []generic.AuditEntry
	for rows.Next() {
		var (
			e           generic.AuditEntry
			ts, action  string
			feeID, body sql.NullString
		)
		if err := rows.Scan(&e.ID, &ts, &e.ActorID, &action, &feeID, &body); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Timestamp = parseTime(ts)
		e.Action = generic.AuditAction(action)
		e.FeeID = feeID.String
		if body.Valid && body.String != "" && body.String != "null" {
			if err := json.Unmarshal([]byte(body.String), &e.Payload); err != nil {
				return nil, fmt.Errorf("failed to scan audit entry %s payload: %w", e.ID, err)
			}
		}
		// Actions and time bounds are filtered in Go.
		if filter.Matches(e) {
			out = append(out, e)
		}
	}
	return out, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func parseDecimal(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
