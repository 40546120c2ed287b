package rpc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Mohsinsiddi/w3sale/internal/chain"
)

// DialFunc opens a node connection for a URL. chain.Dial is the production
// implementation.
type DialFunc func(ctx context.Context, url string) (chain.Node, error)

// BenchmarkResult holds the result of probing a single fallback URL.
type BenchmarkResult struct {
	URL         string
	Latency     time.Duration
	BlockNumber uint64
	ChainID     int64
	Err         error
}

// probeTimeout bounds each individual probe so one dead URL cannot stall selection.
const probeTimeout = 5 * time.Second

// Benchmark probes every URL in parallel: block number for latency and
// recency, chain ID for network identity.
func Benchmark(ctx context.Context, dial DialFunc, urls []string) []BenchmarkResult {
	results := make([]BenchmarkResult, len(urls))
	var wg sync.WaitGroup

	for i, url := range urls {
		wg.Add(1)
		go func(idx int, u string) {
			defer wg.Done()
			results[idx] = probe(ctx, dial, u)
		}(i, url)
	}

	wg.Wait()
	return results
}

func probe(ctx context.Context, dial DialFunc, url string) BenchmarkResult {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	res := BenchmarkResult{URL: url}
	node, err := dial(ctx, url)
	if err != nil {
		res.Err = err
		return res
	}
	defer node.Close()

	res.Latency, res.BlockNumber, res.Err = chain.Ping(ctx, node)
	if res.Err != nil {
		return res
	}
	id, err := node.ChainID(ctx)
	if err != nil {
		res.Err = fmt.Errorf("reading chain id: %w", err)
		return res
	}
	res.ChainID = id.Int64()
	return res
}

// ResultsToCandidates converts benchmark results to picker candidates. A
// result whose chain ID differs from wantChainID (when non-zero) is unhealthy.
func ResultsToCandidates(results []BenchmarkResult, wantChainID int64) []Candidate {
	out := make([]Candidate, 0, len(results))
	for _, r := range results {
		healthy := r.Err == nil
		if healthy && wantChainID != 0 && r.ChainID != wantChainID {
			healthy = false
		}
		out = append(out, Candidate{
			URL:         r.URL,
			Latency:     r.Latency,
			BlockNumber: r.BlockNumber,
			ChainID:     r.ChainID,
			Healthy:     healthy,
			Checked:     true,
		})
	}
	return out
}
