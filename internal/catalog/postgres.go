package catalog

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flowsink/partitionwriter/internal/record"
	"github.com/flowsink/partitionwriter/internal/schema"
)

//go:embed schema.sql
var schemaSQL string

// PostgresCatalog is a HiveService backed by Postgres. Table and partition
// metadata is stored rather than handed to a real Hive metastore, matching
// what a self-hosted deployment of this sink most often reaches for.
type PostgresCatalog struct {
	pool *pgxpool.Pool
}

// Config configures the Postgres-backed catalog's connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// NewPostgresCatalog opens a pool against cfg.DSN and ensures the catalog's
// own tables exist.
func NewPostgresCatalog(cfg Config) (*PostgresCatalog, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("catalog: parse DSN: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	} else {
		poolCfg.MaxConns = 5
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	} else {
		poolCfg.MinConns = 1
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	} else {
		poolCfg.MaxConnLifetime = 30 * time.Minute
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	} else {
		poolCfg.MaxConnIdleTime = 5 * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("catalog: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("catalog: ping database: %w", err)
	}

	c := &PostgresCatalog{pool: pool}
	if err := c.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return c, nil
}

func (c *PostgresCatalog) initSchema(ctx context.Context) error {
	if _, err := c.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("catalog: init schema: %w", err)
	}
	return nil
}

func (c *PostgresCatalog) CreateHiveTable(s *schema.Schema) error {
	fields, err := json.Marshal(s.Fields)
	if err != nil {
		return fmt.Errorf("catalog: marshal fields: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = c.pool.Exec(ctx, `
		INSERT INTO _sink_tables (name, version, fields)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO NOTHING
	`, s.Name, s.Version, fields)
	if err != nil {
		return fmt.Errorf("catalog: create table %q: %w", s.Name, err)
	}
	return nil
}

func (c *PostgresCatalog) AlterHiveSchema(s *schema.Schema) error {
	fields, err := json.Marshal(s.Fields)
	if err != nil {
		return fmt.Errorf("catalog: marshal fields: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = c.pool.Exec(ctx, `
		INSERT INTO _sink_tables (name, version, fields)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET
			version = EXCLUDED.version,
			fields = EXCLUDED.fields,
			updated_at = now()
	`, s.Name, s.Version, fields)
	if err != nil {
		return fmt.Errorf("catalog: alter table %q: %w", s.Name, err)
	}
	return nil
}

func (c *PostgresCatalog) AddHivePartition(rec *record.Record, s *schema.Schema) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := c.pool.Exec(ctx, `
		INSERT INTO _sink_partitions (table_name, encoded_partition, topic, source_partition)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (table_name, encoded_partition) DO NOTHING
	`, s.Name, fmt.Sprintf("%s:%d:%d", rec.Topic, rec.Partition, rec.Offset), rec.Topic, rec.Partition)
	if err != nil {
		return fmt.Errorf("catalog: add partition: %w", err)
	}
	return nil
}

func (c *PostgresCatalog) Close() error {
	c.pool.Close()
	return nil
}

var _ HiveService = (*PostgresCatalog)(nil)
