package hub

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Presence tracks which connections are joined to each session scope. With a
// redis client it mirrors membership into session:<id> sets so rosters are
// visible across service instances; without one it is purely local.
type Presence struct {
	mu    sync.RWMutex
	local map[string]map[string]bool

	redis *redis.Client
	log   zerolog.Logger
}

// NewPresence accepts a nil redis client for single-instance deployments.
func NewPresence(rdb *redis.Client, log zerolog.Logger) *Presence {
	return &Presence{
		local: make(map[string]map[string]bool),
		redis: rdb,
		log:   log,
	}
}

func (p *Presence) Join(sessionID, connectionID string) {
	p.mu.Lock()
	set, ok := p.local[sessionID]
	if !ok {
		set = make(map[string]bool)
		p.local[sessionID] = set
	}
	set[connectionID] = true
	p.mu.Unlock()

	if p.redis != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := p.redis.SAdd(ctx, presenceKey(sessionID), connectionID).Err(); err != nil {
			p.log.Warn().Err(err).Str("session", sessionID).Msg("failed to mirror presence join")
		}
	}
}

func (p *Presence) Leave(sessionID, connectionID string) {
	p.mu.Lock()
	if set, ok := p.local[sessionID]; ok {
		delete(set, connectionID)
		if len(set) == 0 {
			delete(p.local, sessionID)
		}
	}
	p.mu.Unlock()

	if p.redis != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := p.redis.SRem(ctx, presenceKey(sessionID), connectionID).Err(); err != nil {
			p.log.Warn().Err(err).Str("session", sessionID).Msg("failed to mirror presence leave")
		}
	}
}

// Members lists the connection ids joined to a session, sorted for stable
// output. Redis is authoritative when configured, since membership may span
// instances.
func (p *Presence) Members(ctx context.Context, sessionID string) ([]string, error) {
	if p.redis != nil {
		members, err := p.redis.SMembers(ctx, presenceKey(sessionID)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to list session members: %w", err)
		}
		sort.Strings(members)
		return members, nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	members := make([]string, 0, len(p.local[sessionID]))
	for id := range p.local[sessionID] {
		members = append(members, id)
	}
	sort.Strings(members)
	return members, nil
}

func presenceKey(sessionID string) string {
	return "session:" + sessionID
}
