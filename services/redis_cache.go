package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/RobertxMiller/SafeBid/auction"
)

const snapshotTTL = 2 * time.Second

// SnapshotCache keeps recent auction snapshots in Redis so snapshot
// reads under polling fan-out stay off the house's lock. It implements
// auction.EventSink: every committed event refreshes the snapshot of the
// affected auction, write-through. The TTL is short because an auction's
// derived status can flip from pending to active without an event.
type SnapshotCache struct {
	client *redis.Client
	house  *auction.AuctionHouse
	log    *slog.Logger
}

// NewSnapshotCache connects to Redis.
func NewSnapshotCache(addr, password string, db int, house *auction.AuctionHouse, log *slog.Logger) (*SnapshotCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	return &SnapshotCache{client: rdb, house: house, log: log}, nil
}

func snapshotKey(auctionID uint64) string {
	return fmt.Sprintf("auction:%d:snapshot", auctionID)
}

// PublishEvent implements auction.EventSink.
func (c *SnapshotCache) PublishEvent(ev auction.Event) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		snap, err := c.house.GetAuction(ev.AuctionID)
		if err != nil {
			return
		}

		data, err := json.Marshal(snap)
		if err != nil {
			c.log.Error("Marshaling snapshot failed", "auction", ev.AuctionID, "err", err)
			return
		}

		if err := c.client.Set(ctx, snapshotKey(ev.AuctionID), data, snapshotTTL).Err(); err != nil {
			c.log.Warn("Caching snapshot failed", "auction", ev.AuctionID, "err", err)
		}
	}()
}

// Get returns the cached snapshot, or an error on miss so the caller
// falls back to the house.
func (c *SnapshotCache) Get(ctx context.Context, auctionID uint64) (auction.Snapshot, error) {
	data, err := c.client.Get(ctx, snapshotKey(auctionID)).Bytes()
	if err != nil {
		return auction.Snapshot{}, err
	}

	var snap auction.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return auction.Snapshot{}, err
	}
	return snap, nil
}

// Close closes the Redis connection.
func (c *SnapshotCache) Close() error {
	return c.client.Close()
}
