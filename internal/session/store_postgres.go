// Copyright (c) 2026 GapGens. All rights reserved.
// Author: engineering@gapgens.app

package session

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gapgens/gapgens/internal/platform/database/schema"
	"github.com/gapgens/gapgens/internal/platform/dberr"
)

var sessionColumns = strings.Join(schema.UserSession.Columns(), ", ")

// querier is the subset of pgx shared by the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row
}

// # Postgres Store

// PostgresStore implements [Store] on the users.session table.
//
// Per-user serialization uses a transaction-scoped advisory lock keyed on the
// user id; the partial unique index on (userid, deviceid) for non-revoked rows
// backs it up if anything writes outside [PostgresStore.Atomically].
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL implementation of [Store].
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

/*
ListActive returns the user's active sessions, least recently seen first.

Parameters:
  - ctx: context.Context
  - userID: string
  - now: time.Time

Returns:
  - []Record: active sessions
  - error: query failures
*/
func (store *PostgresStore) ListActive(ctx context.Context, userID string, now time.Time) ([]Record, error) {
	return listActive(ctx, store.pool, userID, now)
}

/*
Insert persists a new session in its own transaction.

Returns:
  - error: ErrConflict on token/device collision, or execution errors
*/
func (store *PostgresStore) Insert(ctx context.Context, record *Record) error {
	return pgx.BeginFunc(ctx, store.pool, func(tx pgx.Tx) error {
		return insertRecord(ctx, tx, record)
	})
}

/*
Revoke flags all matching non-revoked rows.

Returns:
  - []Record: rows revoked by this call (empty when nothing matched)
  - error: execution errors
*/
func (store *PostgresStore) Revoke(ctx context.Context, matcher Matcher, now time.Time, reason string) ([]Record, error) {
	return revokeMatching(ctx, store.pool, matcher, now, reason)
}

/*
TouchByTokenHash refreshes lastseenat for the active session owning tokenHash.

Returns:
  - *Record: touched session
  - error: ErrSessionNotFound or execution errors
*/
func (store *PostgresStore) TouchByTokenHash(ctx context.Context, tokenHash string, now time.Time) (*Record, error) {
	query := `
		UPDATE users.session
		SET lastseenat = $2
		WHERE tokenhash = $1 AND isrevoked = FALSE AND expiresat > $2
		RETURNING ` + sessionColumns

	rows, err := store.pool.Query(ctx, query, tokenHash, now)
	if err != nil {
		return nil, fmt.Errorf("postgres_session_touch_failed: %w", err)
	}

	record, err := pgx.CollectExactlyOneRow(rows, scanRecord)
	if err != nil {
		if dberr.IsNoRows(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("postgres_session_touch_failed: %w", err)
	}

	return &record, nil
}

/*
Atomically runs fn inside a READ COMMITTED transaction holding the user's
advisory lock. The lock is released on commit or rollback.
*/
func (store *PostgresStore) Atomically(ctx context.Context, userID string, fn func(tx Tx) error) error {
	return pgx.BeginTxFunc(ctx, store.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtextextended($1, 0))", userID); err != nil {
			return fmt.Errorf("postgres_session_lock_failed: %w", err)
		}
		return fn(&postgresTx{tx: tx})
	})
}

// # Transaction View

type postgresTx struct {
	tx pgx.Tx
}

func (view *postgresTx) ListActive(ctx context.Context, userID string, now time.Time) ([]Record, error) {
	return listActive(ctx, view.tx, userID, now)
}

func (view *postgresTx) Insert(ctx context.Context, record *Record) error {
	return insertRecord(ctx, view.tx, record)
}

func (view *postgresTx) Touch(ctx context.Context, sessionID string, now time.Time) error {
	const query = "UPDATE users.session SET lastseenat = $2 WHERE id = $1"
	if _, err := view.tx.Exec(ctx, query, sessionID, now); err != nil {
		return fmt.Errorf("postgres_session_touch_failed: %w", err)
	}
	return nil
}

// Evict runs inside a savepoint so a failed UPDATE does not abort the outer transaction.
func (view *postgresTx) Evict(ctx context.Context, sessionID string, now time.Time, reason string) error {
	savepoint, err := view.tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres_session_evict_savepoint_failed: %w", err)
	}

	const query = `
		UPDATE users.session
		SET isrevoked = TRUE, revokedat = $2, revokereason = $3
		WHERE id = $1 AND isrevoked = FALSE`

	if _, err := savepoint.Exec(ctx, query, sessionID, now, reason); err != nil {
		_ = savepoint.Rollback(ctx)
		return fmt.Errorf("postgres_session_evict_failed: %w", err)
	}

	return savepoint.Commit(ctx)
}

// # Shared Statements

func listActive(ctx context.Context, q querier, userID string, now time.Time) ([]Record, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM users.session
		WHERE userid = $1 AND isrevoked = FALSE AND expiresat > $2
		ORDER BY lastseenat ASC, createdat ASC, id ASC`

	rows, err := q.Query(ctx, query, userID, now)
	if err != nil {
		return nil, fmt.Errorf("postgres_session_list_active_failed: %w", err)
	}

	records, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("postgres_session_list_active_failed: %w", err)
	}

	return records, nil
}

func insertRecord(ctx context.Context, q querier, record *Record) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = record.LastSeenAt
	}

	// Expired rows still occupy the partial unique index until they are flagged.
	const retire = `
		UPDATE users.session
		SET isrevoked = TRUE, revokedat = $3, revokereason = $4
		WHERE userid = $1 AND deviceid = $2 AND isrevoked = FALSE AND expiresat <= $3`

	if _, err := q.Exec(ctx, retire, record.UserID, record.DeviceID, record.CreatedAt, ReasonExpired); err != nil {
		return fmt.Errorf("postgres_session_retire_expired_failed: %w", err)
	}

	const insert = `
		INSERT INTO users.session (
			id, userid, deviceid, tokenhash, lastseenat, expiresat, isrevoked, createdat
		) VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)`

	_, err := q.Exec(ctx, insert,
		record.ID,
		record.UserID,
		record.DeviceID,
		record.TokenHash,
		record.LastSeenAt,
		record.ExpiresAt,
		record.CreatedAt,
	)
	if err != nil {
		if dberr.IsUniqueViolation(err, "") {
			return fmt.Errorf("%w: %w", ErrConflict, err)
		}
		return fmt.Errorf("postgres_session_insert_failed: %w", err)
	}

	return nil
}

func revokeMatching(ctx context.Context, q querier, matcher Matcher, now time.Time, reason string) ([]Record, error) {
	if matcher.IsEmpty() {
		return nil, fmt.Errorf("%w: empty revocation matcher", ErrInvalidArgument)
	}

	arguments := []any{now, reason}
	conditions := []string{"isrevoked = FALSE"}
	addCondition := func(column, value string) {
		if value == "" {
			return
		}
		arguments = append(arguments, value)
		conditions = append(conditions, column+" = $"+strconv.Itoa(len(arguments)))
	}
	addCondition(schema.UserSession.ID, matcher.ID)
	addCondition(schema.UserSession.UserID, matcher.UserID)
	addCondition(schema.UserSession.DeviceID, matcher.DeviceID)

	query := `
		UPDATE users.session
		SET isrevoked = TRUE, revokedat = $1, revokereason = $2
		WHERE ` + strings.Join(conditions, " AND ") + `
		RETURNING ` + sessionColumns

	rows, err := q.Query(ctx, query, arguments...)
	if err != nil {
		return nil, fmt.Errorf("postgres_session_revoke_failed: %w", err)
	}

	records, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("postgres_session_revoke_failed: %w", err)
	}

	return records, nil
}

func scanRecord(row pgx.CollectableRow) (Record, error) {
	var (
		record Record
		reason *string
	)

	err := row.Scan(
		&record.ID,
		&record.UserID,
		&record.DeviceID,
		&record.TokenHash,
		&record.LastSeenAt,
		&record.ExpiresAt,
		&record.Revoked,
		&record.RevokedAt,
		&reason,
		&record.CreatedAt,
	)
	if err != nil {
		return Record{}, err
	}

	if reason != nil {
		record.RevokeReason = *reason
	}

	return record, nil
}
