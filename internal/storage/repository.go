package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dev-bhaskar8/kekterminal/internal/engine"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrAlertNotFound indicates the alert id matched no row.
	ErrAlertNotFound = errors.New("storage: alert not found")
)

const (
	insertAlertSQL = `INSERT INTO alerts (
        id,
        chat_id,
        pool_address,
        pool_label,
        target_price,
        direction,
        status
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7
    )
    RETURNING created_at;`

	listActiveAlertsSQL = `SELECT
        id,
        chat_id,
        pool_address,
        pool_label,
        target_price,
        direction,
        status,
        created_at
    FROM alerts
    WHERE status = 'active'
    ORDER BY created_at, id;`

	listAlertsByChatSQL = `SELECT
        id,
        chat_id,
        pool_address,
        pool_label,
        target_price,
        direction,
        status,
        created_at
    FROM alerts
    WHERE status = 'active'
      AND chat_id = $1
    ORDER BY created_at, id;`

	setAlertStatusSQL = `UPDATE alerts
    SET status = $2,
        triggered_at = CASE WHEN $2 = 'triggered' THEN NOW() ELSE triggered_at END
    WHERE id = $1;`

	deleteAlertSQL = `DELETE FROM alerts WHERE id = $1;`

	upsertSampleSQL = `INSERT INTO price_samples (
        pool_address,
        bucket_ts,
        price_usd,
        status,
        error
    ) VALUES (
        $1,$2,$3,$4,$5
    )
    ON CONFLICT (pool_address, bucket_ts) DO UPDATE
    SET price_usd = EXCLUDED.price_usd,
        status    = EXCLUDED.status,
        error     = EXCLUDED.error;`

	listSamplesBetweenSQL = `SELECT
        pool_address,
        bucket_ts,
        price_usd,
        status,
        error,
        created_at
    FROM price_samples
    WHERE bucket_ts >= $1
      AND bucket_ts < $2
      AND ($3 = '' OR pool_address = $3)
    ORDER BY bucket_ts, pool_address;`

	listRecentSamplesSQL = `SELECT
        pool_address,
        bucket_ts,
        price_usd,
        status,
        error,
        created_at
    FROM price_samples
    ORDER BY bucket_ts DESC, pool_address
    LIMIT $1;`

	countSamplesSQL = `SELECT COUNT(*) FROM price_samples;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// SampleStore defines operations for price sample history.
type SampleStore interface {
	UpsertSample(ctx context.Context, sample SampleRecord) error
	ListSamplesBetween(ctx context.Context, from, to time.Time, pool string) ([]SampleRecord, error)
	ListRecentSamples(ctx context.Context, limit int) ([]SampleRecord, error)
	CountSamples(ctx context.Context) (int64, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to alerts and price samples.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// unlock best effort; log omitted in storage package
		}
		conn.Release()
	}
	return unlock, true, nil
}

// CreateAlert persists a new alert. The id and created-at are assigned here;
// the filled-in alert is returned.
func (s *Store) CreateAlert(ctx context.Context, alert engine.Alert) (engine.Alert, error) {
	pool, err := s.getPool()
	if err != nil {
		return engine.Alert{}, err
	}

	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.Status == "" {
		alert.Status = engine.StatusActive
	}

	row := pool.QueryRow(ctx, insertAlertSQL,
		alert.ID,
		alert.ChatID,
		alert.Pool,
		alert.Label,
		alert.Target.String(),
		string(alert.Direction),
		string(alert.Status),
	)
	if err := row.Scan(&alert.CreatedAt); err != nil {
		return engine.Alert{}, fmt.Errorf("insert alert: %w", err)
	}
	return alert, nil
}

// ListActiveAlerts returns the active set in stable creation order.
func (s *Store) ListActiveAlerts(ctx context.Context) ([]engine.Alert, error) {
	return s.listAlerts(ctx, listActiveAlertsSQL)
}

// ListAlertsByChat returns a chat's active alerts in stable creation order.
func (s *Store) ListAlertsByChat(ctx context.Context, chatID int64) ([]engine.Alert, error) {
	return s.listAlerts(ctx, listAlertsByChatSQL, chatID)
}

func (s *Store) listAlerts(ctx context.Context, query string, args ...any) ([]engine.Alert, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, query, args...)
	if queryErr != nil {
		return nil, fmt.Errorf("list alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]engine.Alert, 0)
	for rows.Next() {
		alert, scanErr := scanAlert(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		alerts = append(alerts, alert)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

// SetAlertStatus transitions an alert's lifecycle state.
func (s *Store) SetAlertStatus(ctx context.Context, id string, status engine.Status) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	cmdTag, execErr := pool.Exec(ctx, setAlertStatusSQL, id, string(status))
	if execErr != nil {
		return fmt.Errorf("set alert status: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrAlertNotFound
	}
	return nil
}

// DeleteAlert removes an alert row.
func (s *Store) DeleteAlert(ctx context.Context, id string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	cmdTag, execErr := pool.Exec(ctx, deleteAlertSQL, id)
	if execErr != nil {
		return fmt.Errorf("delete alert: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrAlertNotFound
	}
	return nil
}

// UpsertSample persists or updates one price observation.
func (s *Store) UpsertSample(ctx context.Context, sample SampleRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var errMsg any
	if sample.Error != nil {
		errMsg = *sample.Error
	}

	if _, execErr := pool.Exec(ctx, upsertSampleSQL,
		sample.Pool,
		sample.Bucket,
		sample.Price.String(),
		sample.Status,
		errMsg,
	); execErr != nil {
		return fmt.Errorf("upsert price sample: %w", execErr)
	}
	return nil
}

// ListSamplesBetween lists samples within a time window, optionally
// restricted to one pool.
func (s *Store) ListSamplesBetween(ctx context.Context, from, to time.Time, poolAddr string) ([]SampleRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSamplesBetweenSQL, from, to, poolAddr)
	if queryErr != nil {
		return nil, fmt.Errorf("list samples between: %w", queryErr)
	}
	defer rows.Close()

	return collectSamples(rows, 0)
}

// ListRecentSamples lists the most recent samples ordered by descending bucket.
func (s *Store) ListRecentSamples(ctx context.Context, limit int) ([]SampleRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentSamplesSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent samples: %w", queryErr)
	}
	defer rows.Close()

	return collectSamples(rows, limit)
}

// CountSamples counts stored samples.
func (s *Store) CountSamples(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countSamplesSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count samples: %w", scanErr)
	}
	return count, nil
}

func collectSamples(rows pgx.Rows, sizeHint int) ([]SampleRecord, error) {
	samples := make([]SampleRecord, 0, sizeHint)
	for rows.Next() {
		sample, scanErr := scanSample(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		samples = append(samples, sample)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

func scanAlert(rows pgx.Rows) (engine.Alert, error) {
	var (
		alert     engine.Alert
		targetStr string
		direction string
		status    string
	)

	if err := rows.Scan(
		&alert.ID,
		&alert.ChatID,
		&alert.Pool,
		&alert.Label,
		&targetStr,
		&direction,
		&status,
		&alert.CreatedAt,
	); err != nil {
		return engine.Alert{}, err
	}

	target, err := decimal.NewFromString(targetStr)
	if err != nil {
		return engine.Alert{}, fmt.Errorf("parse target price: %w", err)
	}
	alert.Target = target
	alert.Direction = engine.Direction(direction)
	alert.Status = engine.Status(status)
	return alert, nil
}

func scanSample(rows pgx.Rows) (SampleRecord, error) {
	var (
		sample   SampleRecord
		priceStr string
		errMsg   sql.NullString
	)

	if err := rows.Scan(
		&sample.Pool,
		&sample.Bucket,
		&priceStr,
		&sample.Status,
		&errMsg,
		&sample.CreatedAt,
	); err != nil {
		return SampleRecord{}, err
	}

	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return SampleRecord{}, fmt.Errorf("parse sample price: %w", err)
	}
	sample.Price = price

	if errMsg.Valid {
		msg := errMsg.String
		sample.Error = &msg
	}
	return sample, nil
}

var _ engine.AlertStore = (*Store)(nil)
var _ SampleStore = (*Store)(nil)
var _ AdvisoryLocker = (*Store)(nil)
