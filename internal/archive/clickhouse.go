package archive

import (
	"context"
	"fmt"
	"log"
	"time"

	"NetSentry/internal/model"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const createTableStatement = `
CREATE TABLE IF NOT EXISTS traffic_observations (
    ObservationID   Int64,
    Timestamp       DateTime,
    SourceIP        String,
    DestinationIP   String,
    Protocol        String,
    SourcePort      Int32,
    DestinationPort Int32,
    PacketSize      Int32,
    AnomalyScore    Float64
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (Timestamp, ObservationID);
`

// Config holds ClickHouse connection and batching settings for the mirror.
type Config struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	Database      string `yaml:"database"`
	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval string `yaml:"flush_interval"`
}

// Writer mirrors committed observations into ClickHouse for analytics. It is
// strictly best-effort: writes are batched on a background goroutine, and
// observations are dropped with a log line when the buffer is full. It is
// never part of the engine's transactional unit.
type Writer struct {
	conn      driver.Conn
	in        chan *model.TrafficObservation
	batchSize int
	interval  time.Duration
	done      chan struct{}
}

// NewWriter connects to ClickHouse and ensures the mirror table exists.
func NewWriter(cfg Config) (*Writer, error) {
	interval := 5 * time.Second
	if cfg.FlushInterval != "" {
		parsed, err := time.ParseDuration(cfg.FlushInterval)
		if err != nil {
			return nil, fmt.Errorf("invalid flush_interval for archive: %w", err)
		}
		interval = parsed
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 500
	}

	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	if err := conn.Exec(context.Background(), createTableStatement); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	log.Println("Successfully connected to ClickHouse and ensured table exists.")

	w := &Writer{
		conn:      conn,
		in:        make(chan *model.TrafficObservation, 4*batchSize),
		batchSize: batchSize,
		interval:  interval,
		done:      make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func connect(cfg Config) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return conn, nil
}

// Archive queues an observation for the next batch without blocking.
func (w *Writer) Archive(obs *model.TrafficObservation) {
	select {
	case w.in <- obs:
	default:
		log.Printf("Archive buffer full, dropping observation %d", obs.ID)
	}
}

// Stop flushes buffered observations and shuts the writer down.
func (w *Writer) Stop() {
	close(w.in)
	<-w.done
}

func (w *Writer) run() {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	pending := make([]*model.TrafficObservation, 0, w.batchSize)
	flush := func() {
		if len(pending) == 0 {
			return
		}
		if err := w.writeBatch(pending); err != nil {
			log.Printf("Error writing archive batch of %d observations: %v", len(pending), err)
		}
		pending = pending[:0]
	}

	for {
		select {
		case obs, ok := <-w.in:
			if !ok {
				flush()
				return
			}
			pending = append(pending, obs)
			if len(pending) >= w.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (w *Writer) writeBatch(observations []*model.TrafficObservation) error {
	batch, err := w.conn.PrepareBatch(context.Background(), "INSERT INTO traffic_observations")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, obs := range observations {
		err = batch.Append(
			obs.ID,
			obs.Timestamp,
			obs.SourceIP,
			obs.DestinationIP,
			obs.Protocol,
			int32(obs.SourcePort),
			int32(obs.DestinationPort),
			int32(obs.PacketSize),
			obs.AnomalyScore,
		)
		if err != nil {
			return fmt.Errorf("failed to append observation to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	log.Printf("Mirrored %d observations to ClickHouse", len(observations))
	return nil
}
