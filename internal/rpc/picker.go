package rpc

import (
	"errors"
	"sync"
	"time"
)

// ErrNoHealthyRPC is returned when no fallback endpoint is usable.
var ErrNoHealthyRPC = errors.New("no healthy RPC endpoint available")

// Algorithm defines how a fallback endpoint is selected.
type Algorithm string

const (
	AlgorithmFastest    Algorithm = "fastest"
	AlgorithmRoundRobin Algorithm = "round-robin"
	AlgorithmFailover   Algorithm = "failover"

	// Discard nodes more than this many blocks behind the best.
	staleBlockThreshold = 3
	// Cache winner for this duration before re-benchmarking.
	cacheTTL = 5 * time.Minute
)

// ParseAlgorithm maps a config string to an Algorithm, defaulting to fastest.
func ParseAlgorithm(s string) Algorithm {
	switch Algorithm(s) {
	case AlgorithmRoundRobin, AlgorithmFailover:
		return Algorithm(s)
	default:
		return AlgorithmFastest
	}
}

// Candidate is one fallback URL with its measured attributes.
type Candidate struct {
	URL         string
	Latency     time.Duration
	BlockNumber uint64
	ChainID     int64
	Healthy     bool // meaningful only when Checked == true
	Checked     bool
}

// Picker selects a candidate according to the configured algorithm. It keeps
// round-robin position and the fastest winner across calls.
type Picker struct {
	algo        Algorithm
	mu          sync.Mutex
	rrIndex     int
	cachedURL   string
	cacheExpiry time.Time
	onBenchmark func()
}

func NewPicker(algo Algorithm) *Picker {
	return &Picker{algo: algo}
}

// Algorithm reports the picker's selection strategy.
func (p *Picker) Algorithm() Algorithm { return p.algo }

// OnBenchmark registers a hook called each time the fastest winner is recomputed.
func (p *Picker) OnBenchmark(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onBenchmark = fn
}

// Cached returns the current fastest winner if it has not expired.
func (p *Picker) Cached() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cachedURL != "" && time.Now().Before(p.cacheExpiry) {
		return p.cachedURL, true
	}
	return "", false
}

// Forget drops the cached winner, e.g. after it stopped answering.
func (p *Picker) Forget() {
	p.mu.Lock()
	p.cachedURL = ""
	p.mu.Unlock()
}

// Pick selects a candidate from the list according to the algorithm.
func (p *Picker) Pick(candidates []Candidate) (*Candidate, error) {
	if len(candidates) == 0 {
		return nil, ErrNoHealthyRPC
	}

	switch p.algo {
	case AlgorithmRoundRobin:
		return p.pickRoundRobin(candidates)
	case AlgorithmFailover:
		return p.pickFailover(candidates)
	default:
		return p.pickFastest(candidates)
	}
}

func (p *Picker) pickFastest(candidates []Candidate) (*Candidate, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cachedURL != "" && time.Now().Before(p.cacheExpiry) {
		for i := range candidates {
			if candidates[i].URL == p.cachedURL {
				return &candidates[i], nil
			}
		}
	}

	if p.onBenchmark != nil {
		p.onBenchmark()
	}

	var bestBlock uint64
	for _, c := range candidates {
		if c.BlockNumber > bestBlock {
			bestBlock = c.BlockNumber
		}
	}

	healthy := healthyCandidates(candidates)
	if len(healthy) == 0 {
		return nil, ErrNoHealthyRPC
	}

	var winner *Candidate
	var bestScore float64
	for _, c := range healthy {
		if bestBlock > 0 && bestBlock-c.BlockNumber > staleBlockThreshold {
			continue
		}
		s := score(c, bestBlock)
		if winner == nil || s > bestScore {
			winner = c
			bestScore = s
		}
	}
	if winner == nil {
		return nil, ErrNoHealthyRPC
	}

	p.cachedURL = winner.URL
	p.cacheExpiry = time.Now().Add(cacheTTL)
	return winner, nil
}

func (p *Picker) pickRoundRobin(candidates []Candidate) (*Candidate, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	healthy := healthyCandidates(candidates)
	if len(healthy) == 0 {
		return nil, ErrNoHealthyRPC
	}

	idx := p.rrIndex % len(healthy)
	p.rrIndex = (idx + 1) % len(healthy)
	return healthy[idx], nil
}

// pickFailover takes the first candidate in configured order that is not
// known to be unhealthy.
func (p *Picker) pickFailover(candidates []Candidate) (*Candidate, error) {
	for i := range candidates {
		c := &candidates[i]
		if c.Checked && !c.Healthy {
			continue
		}
		return c, nil
	}
	return nil, ErrNoHealthyRPC
}

// --- scoring ---

func score(c *Candidate, bestBlock uint64) float64 {
	var s float64
	if ms := c.Latency.Milliseconds(); ms > 0 {
		s += 1000.0 / float64(ms)
	} else if c.Latency > 0 {
		s += 1000.0
	}
	if bestBlock > 0 {
		behind := bestBlock - c.BlockNumber
		s += float64(10) - float64(behind)
	}
	return s
}

// healthyCandidates returns the candidates eligible for selection. When no
// candidate has been checked all of them are eligible.
func healthyCandidates(candidates []Candidate) []*Candidate {
	anyChecked := false
	for _, c := range candidates {
		if c.Checked {
			anyChecked = true
			break
		}
	}

	var out []*Candidate
	for i := range candidates {
		c := &candidates[i]
		if !anyChecked || !c.Checked || c.Healthy {
			out = append(out, c)
		}
	}
	return out
}
