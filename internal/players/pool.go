// internal/players/pool.go

// Package players is the thin wrapper over the external player-data lookup:
// a read-through redis cache of the auction player pool. It has no state
// machine of its own; when redis is unreachable the built-in pool serves.
package players

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/anayv/crease/internal/auction"
)

const (
	poolKey = "crease:player_pool"
	poolTTL = 6 * time.Hour
)

// Pool serves auction lots, caching the pool payload in redis so every room
// start does not re-derive it. A nil client serves the built-in pool only.
type Pool struct {
	rdb *redis.Client
	log *logrus.Logger
}

// Connect dials redis with the usual startup ping. A connect failure is not
// fatal for the service; callers fall back to NewPool(nil, ...).
func Connect(addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return rdb, nil
}

func NewPool(rdb *redis.Client, log *logrus.Logger) *Pool {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Pool{rdb: rdb, log: log}
}

// Lots implements auction.LotSource: cached pool if present, otherwise the
// built-in pool (written back to the cache on a miss).
func (p *Pool) Lots(ctx context.Context) ([]auction.Lot, error) {
	if p.rdb == nil {
		return defaultPool(), nil
	}

	raw, err := p.rdb.Get(ctx, poolKey).Bytes()
	if err == nil {
		var lots []auction.Lot
		if jsonErr := json.Unmarshal(raw, &lots); jsonErr == nil && len(lots) > 0 {
			return lots, nil
		}
		p.log.Warn("cached player pool is malformed, rebuilding")
	} else if err != redis.Nil {
		p.log.WithField("error", err).Warn("player pool cache read failed, serving built-in pool")
		return defaultPool(), nil
	}

	lots := defaultPool()
	if data, jsonErr := json.Marshal(lots); jsonErr == nil {
		if setErr := p.rdb.Set(ctx, poolKey, data, poolTTL).Err(); setErr != nil {
			p.log.WithField("error", setErr).Warn("player pool cache write failed")
		}
	}
	return lots, nil
}

// defaultPool is the stock auction pool used when no external pool has been
// loaded into the cache.
func defaultPool() []auction.Lot {
	return []auction.Lot{
		{ID: "p01", Name: "V. Acharya", Role: "batter", BasePrice: 200},
		{ID: "p02", Name: "R. Sharama", Role: "batter", BasePrice: 200},
		{ID: "p03", Name: "J. Mendis", Role: "allrounder", BasePrice: 150},
		{ID: "p04", Name: "S. Khan", Role: "bowler", BasePrice: 150},
		{ID: "p05", Name: "D. Naidoo", Role: "keeper", BasePrice: 100},
		{ID: "p06", Name: "T. Fernando", Role: "bowler", BasePrice: 100},
		{ID: "p07", Name: "A. Rahman", Role: "allrounder", BasePrice: 75},
		{ID: "p08", Name: "K. Perera", Role: "batter", BasePrice: 75},
		{ID: "p09", Name: "M. Ul Haq", Role: "bowler", BasePrice: 50},
		{ID: "p10", Name: "B. Travers", Role: "batter", BasePrice: 50},
		{ID: "p11", Name: "N. Odhiambo", Role: "bowler", BasePrice: 20},
		{ID: "p12", Name: "H. Patel", Role: "keeper", BasePrice: 20},
		{ID: "p13", Name: "C. De Silva", Role: "allrounder", BasePrice: 20},
		{ID: "p14", Name: "E. Mwangi", Role: "batter", BasePrice: 20},
		{ID: "p15", Name: "L. Jansen", Role: "bowler", BasePrice: 20},
		{ID: "p16", Name: "O. Karim", Role: "batter", BasePrice: 20},
		{ID: "p17", Name: "G. Mathews", Role: "bowler", BasePrice: 20},
		{ID: "p18", Name: "W. Das", Role: "allrounder", BasePrice: 20},
		{ID: "p19", Name: "F. Hossain", Role: "batter", BasePrice: 20},
		{ID: "p20", Name: "I. Zaman", Role: "bowler", BasePrice: 20},
		{ID: "p21", Name: "U. Silva", Role: "batter", BasePrice: 20},
		{ID: "p22", Name: "Y. Chopra", Role: "keeper", BasePrice: 20},
	}
}
