package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/RobertxMiller/SafeBid/auction"
)

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// ConnectionString returns the PostgreSQL connection string.
func (c *PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslMode)
}

// PostgresArchiver persists the auction event stream into a queryable
// history. It implements auction.EventSink; writes happen off the caller's
// goroutine so a slow database never blocks a mutation.
type PostgresArchiver struct {
	db  *sql.DB
	log *slog.Logger
}

// NewPostgresArchiver opens the database and runs migrations.
func NewPostgresArchiver(config *PostgresConfig, log *slog.Logger) (*PostgresArchiver, error) {
	db, err := sql.Open("postgres", config.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	archiver := &PostgresArchiver{db: db, log: log}
	if err := archiver.migrate(); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return archiver, nil
}

func (a *PostgresArchiver) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS auctions (
		id BIGINT PRIMARY KEY,
		seller VARCHAR(128) NOT NULL,
		item_name VARCHAR(512) NOT NULL,
		start_price BIGINT NOT NULL,
		start_time TIMESTAMP WITH TIME ZONE NOT NULL,
		winner VARCHAR(128),
		final_price BIGINT,
		ended_at TIMESTAMP WITH TIME ZONE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS bids (
		event_id VARCHAR(64) PRIMARY KEY,
		auction_id BIGINT NOT NULL,
		bidder VARCHAR(128) NOT NULL,
		placed_at TIMESTAMP WITH TIME ZONE NOT NULL
	);

	CREATE TABLE IF NOT EXISTS auction_events (
		event_id VARCHAR(64) PRIMARY KEY,
		seq BIGINT NOT NULL,
		auction_id BIGINT NOT NULL,
		event_type VARCHAR(32) NOT NULL,
		occurred_at TIMESTAMP WITH TIME ZONE NOT NULL,
		payload JSONB NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_bids_auction ON bids(auction_id);
	CREATE INDEX IF NOT EXISTS idx_events_auction ON auction_events(auction_id, seq);
	`

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := a.db.ExecContext(ctx, schema)
	return err
}

// PublishEvent implements auction.EventSink.
func (a *PostgresArchiver) PublishEvent(ev auction.Event) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := a.archive(ctx, ev); err != nil {
			a.log.Warn("Archiving event failed", "event", ev.ID, "type", ev.Type, "err", err)
		}
	}()
}

func (a *PostgresArchiver) archive(ctx context.Context, ev auction.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	_, err = a.db.ExecContext(ctx, `
		INSERT INTO auction_events (event_id, seq, auction_id, event_type, occurred_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_id) DO NOTHING
	`, ev.ID, ev.Seq, ev.AuctionID, string(ev.Type), ev.Timestamp, payload)
	if err != nil {
		return fmt.Errorf("inserting event row: %w", err)
	}

	switch ev.Type {
	case auction.EventAuctionCreated:
		_, err = a.db.ExecContext(ctx, `
			INSERT INTO auctions (id, seller, item_name, start_price, start_time)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO NOTHING
		`, ev.AuctionID, ev.Created.Seller, ev.Created.ItemName, ev.Created.StartPrice, ev.Created.StartTime)

	case auction.EventBidPlaced:
		_, err = a.db.ExecContext(ctx, `
			INSERT INTO bids (event_id, auction_id, bidder, placed_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (event_id) DO NOTHING
		`, ev.ID, ev.AuctionID, ev.Bid.Bidder, ev.Bid.Timestamp)

	case auction.EventAuctionEnded:
		_, err = a.db.ExecContext(ctx, `
			UPDATE auctions
			SET winner = NULLIF($1, ''), final_price = $2, ended_at = $3
			WHERE id = $4
		`, ev.Ended.Winner, ev.Ended.FinalPrice, ev.Timestamp, ev.AuctionID)
	}
	return err
}

// BidRecord is one archived bid. Amounts are absent: the archive only
// ever sees what the event stream exposes.
type BidRecord struct {
	Bidder   string    `json:"bidder"`
	PlacedAt time.Time `json:"placed_at"`
}

// BidHistory returns the archived bids for an auction, newest first.
func (a *PostgresArchiver) BidHistory(ctx context.Context, auctionID uint64, limit int) ([]BidRecord, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT bidder, placed_at
		FROM bids
		WHERE auction_id = $1
		ORDER BY placed_at DESC
		LIMIT $2
	`, auctionID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying bids: %w", err)
	}
	defer rows.Close()

	records := []BidRecord{}
	for rows.Next() {
		var rec BidRecord
		if err := rows.Scan(&rec.Bidder, &rec.PlacedAt); err != nil {
			return nil, fmt.Errorf("scanning bid row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close closes the database connection.
func (a *PostgresArchiver) Close() error {
	return a.db.Close()
}
