package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/aman-zulfiqar/spl-token-manager/internal/models"
	"github.com/sirupsen/logrus"
)

// OperationsTableDDL creates the operation log read by the journal assistant.
const OperationsTableDDL = `
CREATE TABLE IF NOT EXISTS token_operations (
	id            String,
	signature     String,
	timestamp     DateTime64(3),
	kind          LowCardinality(String),
	status        LowCardinality(String),
	mint          String,
	owner         String,
	counterparty  String,
	token_account String,
	amount        String,
	base_units    UInt64,
	decimals      UInt8,
	reason        String,
	error_kind    LowCardinality(String),
	cluster       LowCardinality(String)
) ENGINE = MergeTree
ORDER BY (timestamp, kind)
`

type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string

	Logger *logrus.Logger
}

// ClickHouseStore implements storage.OperationStore
type ClickHouseStore struct {
	conn   driver.Conn
	logger *logrus.Logger
}

func NewClickHouseStore(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseStore, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Username == "" {
		cfg.Username = "default"
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.Ping(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	cfg.Logger.WithFields(logrus.Fields{
		"addr":     cfg.Addr,
		"database": cfg.Database,
	}).Info("connected to ClickHouse")

	return &ClickHouseStore{conn: conn, logger: cfg.Logger}, nil
}

// EnsureSchema creates the token_operations table when it is missing.
func (c *ClickHouseStore) EnsureSchema(ctx context.Context) error {
	if err := c.conn.Exec(ctx, OperationsTableDDL); err != nil {
		return fmt.Errorf("create token_operations: %w", err)
	}
	return nil
}

func (c *ClickHouseStore) InsertOperation(ctx context.Context, op *models.OperationEvent) error {
	query := `
		INSERT INTO token_operations (
			id, signature, timestamp, kind, status, mint, owner, counterparty,
			token_account, amount, base_units, decimals, reason, error_kind, cluster
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := c.conn.Exec(ctx, query,
		op.ID,
		op.Signature,
		op.Timestamp,
		op.Kind,
		op.Status,
		op.Mint,
		op.Owner,
		op.Counterparty,
		op.TokenAccount,
		op.Amount,
		op.BaseUnits,
		op.Decimals,
		op.Reason,
		op.ErrorKind,
		op.Cluster,
	)
	if err != nil {
		return fmt.Errorf("failed to insert operation: %w", err)
	}

	return nil
}

func (c *ClickHouseStore) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *ClickHouseStore) Close() error {
	return c.conn.Close()
}
