package postgres

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"NetSentry/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaStatements = `
CREATE TABLE IF NOT EXISTS network_traffic (
    id               BIGSERIAL PRIMARY KEY,
    source_ip        TEXT NOT NULL,
    destination_ip   TEXT NOT NULL,
    protocol         TEXT NOT NULL,
    source_port      INTEGER NOT NULL,
    destination_port INTEGER NOT NULL,
    packet_size      INTEGER NOT NULL,
    timestamp        TIMESTAMPTZ NOT NULL,
    raw_data         JSONB,
    anomaly_score    DOUBLE PRECISION NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_network_traffic_timestamp ON network_traffic (timestamp);

CREATE TABLE IF NOT EXISTS alerts (
    id                 BIGSERIAL PRIMARY KEY,
    title              TEXT NOT NULL,
    description        TEXT NOT NULL,
    threat_level       TEXT NOT NULL,
    status             TEXT NOT NULL,
    network_traffic_id BIGINT NOT NULL REFERENCES network_traffic (id),
    assigned_to        TEXT NOT NULL,
    resolution_notes   TEXT NOT NULL DEFAULT '',
    resolved_at        TIMESTAMPTZ,
    created_at         TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts (created_at);
`

// Config holds PostgreSQL connection settings.
type Config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// DSN renders the connection string.
func (c Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", c.User, c.Password, c.Host, c.Port, c.Database)
}

// dbtx is the subset of pgx satisfied by both pgxpool.Pool and pgx.Tx, so the
// same repository code serves plain reads and transactional writes.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements model.Store on PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to PostgreSQL and ensures the schema exists.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaStatements); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	log.Println("Successfully connected to PostgreSQL and ensured schema exists.")
	return &Store{pool: pool}, nil
}

// Traffic returns the observation repository bound to the pool.
func (s *Store) Traffic() model.TrafficRepository {
	return &trafficRepo{db: s.pool}
}

// Alerts returns the alert repository bound to the pool.
func (s *Store) Alerts() model.AlertRepository {
	return &alertRepo{db: s.pool}
}

// InTx runs fn against repositories bound to one transaction. Any error from
// fn rolls the whole unit back.
func (s *Store) InTx(ctx context.Context, fn func(traffic model.TrafficRepository, alerts model.AlertRepository) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&trafficRepo{db: tx}, &alertRepo{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// ---- traffic repository ----

type trafficRepo struct {
	db dbtx
}

func (r *trafficRepo) Insert(ctx context.Context, obs *model.TrafficObservation) (int64, error) {
	var raw any
	if len(obs.RawData) > 0 {
		raw = string(obs.RawData)
	}

	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO network_traffic
			(source_ip, destination_ip, protocol, source_port, destination_port, packet_size, timestamp, raw_data, anomaly_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		obs.SourceIP, obs.DestinationIP, obs.Protocol, obs.SourcePort, obs.DestinationPort,
		obs.PacketSize, obs.Timestamp, raw, obs.AnomalyScore,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert network_traffic row: %w", err)
	}
	return id, nil
}

func (r *trafficRepo) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx,
		`SELECT count(*) FROM network_traffic WHERE timestamp >= $1`, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count network_traffic rows: %w", err)
	}
	return count, nil
}

func (r *trafficRepo) CountWithScoreAbove(ctx context.Context, since time.Time, score float64) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx,
		`SELECT count(*) FROM network_traffic WHERE timestamp >= $1 AND anomaly_score > $2`, since, score,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count anomalous network_traffic rows: %w", err)
	}
	return count, nil
}

// ---- alert repository ----

type alertRepo struct {
	db dbtx
}

const alertColumns = `id, title, description, threat_level, status, network_traffic_id, assigned_to, resolution_notes, resolved_at, created_at`

func (r *alertRepo) Insert(ctx context.Context, alert *model.Alert) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO alerts
			(title, description, threat_level, status, network_traffic_id, assigned_to, resolution_notes, resolved_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		alert.Title, alert.Description, alert.ThreatLevel.String(), string(alert.Status),
		alert.TrafficID, alert.AssignedTo, alert.ResolutionNotes, alert.ResolvedAt, alert.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert alerts row: %w", err)
	}
	return id, nil
}

func (r *alertRepo) FindByID(ctx context.Context, id int64) (*model.Alert, error) {
	row := r.db.QueryRow(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = $1`, id)
	alert, err := scanAlert(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select alerts row: %w", err)
	}
	return alert, nil
}

func (r *alertRepo) Update(ctx context.Context, alert *model.Alert) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE alerts
		SET status = $1, resolution_notes = $2, resolved_at = $3
		WHERE id = $4`,
		string(alert.Status), alert.ResolutionNotes, alert.ResolvedAt, alert.ID,
	)
	if err != nil {
		return fmt.Errorf("update alerts row: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrAlertNotFound
	}
	return nil
}

func (r *alertRepo) List(ctx context.Context, filter model.AlertFilter) ([]*model.Alert, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + alertColumns + ` FROM alerts`)

	var whereClauses []string
	args := []any{}

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		whereClauses = append(whereClauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Level != nil {
		args = append(args, filter.Level.String())
		whereClauses = append(whereClauses, fmt.Sprintf("threat_level = $%d", len(args)))
	}
	if len(whereClauses) > 0 {
		queryBuilder.WriteString(" WHERE " + strings.Join(whereClauses, " AND "))
	}
	queryBuilder.WriteString(" ORDER BY created_at DESC, id DESC")

	rows, err := r.db.Query(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*model.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alerts row: %w", err)
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alerts rows: %w", err)
	}
	return alerts, nil
}

func (r *alertRepo) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx,
		`SELECT count(*) FROM alerts WHERE created_at >= $1`, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count alerts rows: %w", err)
	}
	return count, nil
}

func scanAlert(row pgx.Row) (*model.Alert, error) {
	var alert model.Alert
	var level, status string
	if err := row.Scan(
		&alert.ID, &alert.Title, &alert.Description, &level, &status,
		&alert.TrafficID, &alert.AssignedTo, &alert.ResolutionNotes,
		&alert.ResolvedAt, &alert.CreatedAt,
	); err != nil {
		return nil, err
	}

	parsed, err := model.ParseThreatLevel(level)
	if err != nil {
		return nil, fmt.Errorf("stored threat level: %w", err)
	}
	alert.ThreatLevel = parsed
	alert.Status = model.AlertStatus(status)
	return &alert, nil
}
