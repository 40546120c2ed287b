package rpc

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/Mohsinsiddi/w3sale/internal/chain"
)

// Selector picks one fallback URL for read-only access. It holds a Picker so
// round-robin position and the cached fastest winner survive between calls.
type Selector struct {
	mu      sync.Mutex
	urls    []string
	chainID int64 // expected chain; 0 accepts any

	dial   DialFunc
	picker *Picker
	log    *zap.Logger
}

// NewSelector builds a Selector over urls. A nil dial uses chain.Dial.
func NewSelector(urls []string, chainID int64, algo Algorithm, dial DialFunc, log *zap.Logger) *Selector {
	if log == nil {
		log = zap.NewNop()
	}
	if dial == nil {
		dial = chain.Dial
	}
	return &Selector{
		urls:    append([]string(nil), urls...),
		chainID: chainID,
		dial:    dial,
		picker:  NewPicker(algo),
		log:     log,
	}
}

// Select returns the URL to use. A single configured URL is returned without
// probing; failover order is honoured without probing too, since the first
// URL is always tried first and health is learned from MarkFailed.
func (s *Selector) Select(ctx context.Context) (string, error) {
	urls := s.URLs()
	switch {
	case len(urls) == 0:
		return "", ErrNoHealthyRPC
	case len(urls) == 1:
		return urls[0], nil
	}

	if url, ok := s.picker.Cached(); ok {
		return url, nil
	}

	var candidates []Candidate
	if s.picker.Algorithm() == AlgorithmFailover {
		candidates = make([]Candidate, len(urls))
		for i, u := range urls {
			candidates[i] = Candidate{URL: u}
		}
	} else {
		results := Benchmark(ctx, s.dial, urls)
		for _, r := range results {
			if r.Err != nil {
				s.log.Debug("fallback rpc probe failed", zap.String("url", r.URL), zap.Error(r.Err))
			}
		}
		candidates = ResultsToCandidates(results, s.chainID)
	}

	winner, err := s.picker.Pick(candidates)
	if err != nil {
		return "", err
	}
	s.log.Debug("fallback rpc selected",
		zap.String("url", winner.URL),
		zap.String("algorithm", string(s.picker.Algorithm())),
		zap.Duration("latency", winner.Latency),
	)
	return winner.URL, nil
}

// MarkFailed forgets a cached winner so the next Select re-evaluates. For
// failover, the failed URL is rotated to the back of the list.
func (s *Selector) MarkFailed(url string) {
	s.picker.Forget()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.picker.Algorithm() != AlgorithmFailover || len(s.urls) < 2 || s.urls[0] != url {
		return
	}
	s.urls = append(append([]string{}, s.urls[1:]...), url)
}

// URLs returns the configured fallback URLs in current preference order.
func (s *Selector) URLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.urls...)
}
