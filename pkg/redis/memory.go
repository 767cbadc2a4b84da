package redis

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MemoryClient is an in-process Client for tests. TTLs are recorded but
// never enforced.
type MemoryClient struct {
	mu     sync.Mutex
	hashes map[string]map[string]string
	zsets  map[string][]ZMember
	ttls   map[string]time.Duration
}

// NewMemoryClient creates an empty in-memory client
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		hashes: make(map[string]map[string]string),
		zsets:  make(map[string][]ZMember),
		ttls:   make(map[string]time.Duration),
	}
}

func (m *MemoryClient) HSet(ctx context.Context, key string, field string, value interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hashes[key] == nil {
		m.hashes[key] = make(map[string]string)
	}
	m.hashes[key][field] = fmt.Sprint(value)
	return nil
}

func (m *MemoryClient) HGet(ctx context.Context, key string, field string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.hashes[key][field]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (m *MemoryClient) HSetNX(ctx context.Context, key string, field string, value interface{}) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.hashes[key][field]; ok {
		return false, nil
	}
	if m.hashes[key] == nil {
		m.hashes[key] = make(map[string]string)
	}
	m.hashes[key][field] = fmt.Sprint(value)
	return true, nil
}

func (m *MemoryClient) ZAdd(ctx context.Context, key string, score float64, member interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	value := fmt.Sprint(member)
	set := m.zsets[key]
	for i := range set {
		if set[i].Member == value {
			set = append(set[:i], set[i+1:]...)
			break
		}
	}
	set = append(set, ZMember{Score: score, Member: value})
	sort.SliceStable(set, func(i, j int) bool {
		if set[i].Score == set[j].Score {
			return set[i].Member < set[j].Member
		}
		return set[i].Score < set[j].Score
	})
	m.zsets[key] = set
	return nil
}

func (m *MemoryClient) ZRemRangeByScore(ctx context.Context, key string, min, max string) error {
	lo, err := parseBound(min)
	if err != nil {
		return err
	}
	hi, err := parseBound(max)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.zsets[key][:0]
	for _, member := range m.zsets[key] {
		if lo.below(member.Score) && hi.above(member.Score) {
			continue
		}
		kept = append(kept, member)
	}
	m.zsets[key] = kept
	return nil
}

func (m *MemoryClient) ZCard(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.zsets[key])), nil
}

func (m *MemoryClient) ZRangeByScoreWithScores(ctx context.Context, key string, min, max string) ([]ZMember, error) {
	lo, err := parseBound(min)
	if err != nil {
		return nil, err
	}
	hi, err := parseBound(max)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var members []ZMember
	for _, member := range m.zsets[key] {
		if lo.below(member.Score) && hi.above(member.Score) {
			members = append(members, member)
		}
	}
	return members, nil
}

func (m *MemoryClient) Expire(ctx context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ttls[key] = ttl
	return nil
}

// TTL returns the last TTL set on key
func (m *MemoryClient) TTL(key string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ttls[key]
}

func (m *MemoryClient) Ping(ctx context.Context) error { return nil }

func (m *MemoryClient) Close() error { return nil }

type bound struct {
	value     float64
	exclusive bool
}

// below reports whether score is at or past the bound when used as a minimum
func (b bound) below(score float64) bool {
	if b.exclusive {
		return score > b.value
	}
	return score >= b.value
}

// above reports whether score is within the bound when used as a maximum
func (b bound) above(score float64) bool {
	if b.exclusive {
		return score < b.value
	}
	return score <= b.value
}

func parseBound(s string) (bound, error) {
	switch s {
	case "-inf":
		return bound{value: math.Inf(-1)}, nil
	case "+inf", "inf":
		return bound{value: math.Inf(1)}, nil
	}

	var b bound
	if strings.HasPrefix(s, "(") {
		b.exclusive = true
		s = s[1:]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return bound{}, fmt.Errorf("invalid score bound %q: %w", s, err)
	}
	b.value = v
	return b, nil
}
