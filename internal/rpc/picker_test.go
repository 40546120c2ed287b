package rpc_test

import (
	"testing"
	"time"

	"github.com/Mohsinsiddi/w3sale/internal/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// checked builds a candidate that has been probed.
func checked(url string, latency time.Duration, block uint64, healthy bool) rpc.Candidate {
	return rpc.Candidate{URL: url, Latency: latency, BlockNumber: block, Healthy: healthy, Checked: true}
}

// unchecked builds a candidate with latency/block data but no probe status.
func unchecked(url string, latency time.Duration, block uint64) rpc.Candidate {
	return rpc.Candidate{URL: url, Latency: latency, BlockNumber: block}
}

func TestPickerSelectsFastest(t *testing.T) {
	candidates := []rpc.Candidate{
		unchecked("http://slow.rpc", 200*time.Millisecond, 100),
		unchecked("http://fast.rpc", 30*time.Millisecond, 100),
		unchecked("http://medium.rpc", 80*time.Millisecond, 100),
	}

	picker := rpc.NewPicker(rpc.AlgorithmFastest)
	winner, err := picker.Pick(candidates)

	require.NoError(t, err)
	assert.Equal(t, "http://fast.rpc", winner.URL)
}

func TestPickerDiscardsStaleNodes(t *testing.T) {
	candidates := []rpc.Candidate{
		checked("http://fresh.rpc", 50*time.Millisecond, 1000, true),
		checked("http://stale.rpc", 10*time.Millisecond, 990, true),
	}

	winner, err := rpc.NewPicker(rpc.AlgorithmFastest).Pick(candidates)

	require.NoError(t, err)
	assert.Equal(t, "http://fresh.rpc", winner.URL, "stale node should be discarded even if faster")
}

func TestPickerRoundRobinCycles(t *testing.T) {
	candidates := []rpc.Candidate{
		checked("http://rpc1", 0, 100, true),
		checked("http://rpc2", 0, 100, true),
	}

	picker := rpc.NewPicker(rpc.AlgorithmRoundRobin)
	first, _ := picker.Pick(candidates)
	second, _ := picker.Pick(candidates)
	third, _ := picker.Pick(candidates)

	assert.NotEqual(t, first.URL, second.URL)
	assert.Equal(t, first.URL, third.URL)
}

func TestPickerFailover(t *testing.T) {
	candidates := []rpc.Candidate{
		checked("http://primary", 0, 100, false),
		checked("http://secondary", 0, 100, true),
		checked("http://tertiary", 0, 100, true),
	}

	winner, err := rpc.NewPicker(rpc.AlgorithmFailover).Pick(candidates)

	require.NoError(t, err)
	assert.Equal(t, "http://secondary", winner.URL)
}

func TestPickerErrorsWhenAllUnhealthy(t *testing.T) {
	candidates := []rpc.Candidate{
		checked("http://rpc1", 100*time.Millisecond, 0, false),
		checked("http://rpc2", 200*time.Millisecond, 0, false),
	}

	_, err := rpc.NewPicker(rpc.AlgorithmFastest).Pick(candidates)
	assert.ErrorIs(t, err, rpc.ErrNoHealthyRPC)
}

func TestPickerCachesWinner(t *testing.T) {
	benchmarks := 0
	candidates := []rpc.Candidate{unchecked("http://fast.rpc", 30*time.Millisecond, 100)}

	picker := rpc.NewPicker(rpc.AlgorithmFastest)
	picker.OnBenchmark(func() { benchmarks++ })

	picker.Pick(candidates) //nolint:errcheck
	picker.Pick(candidates) //nolint:errcheck
	picker.Pick(candidates) //nolint:errcheck

	assert.Equal(t, 1, benchmarks, "benchmark should only run once within cache TTL")

	url, ok := picker.Cached()
	require.True(t, ok)
	assert.Equal(t, "http://fast.rpc", url)

	picker.Forget()
	_, ok = picker.Cached()
	assert.False(t, ok)
}

func TestPickerEmptyCandidates(t *testing.T) {
	_, err := rpc.NewPicker(rpc.AlgorithmFastest).Pick(nil)
	assert.ErrorIs(t, err, rpc.ErrNoHealthyRPC)
}

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		in   string
		want rpc.Algorithm
	}{
		{"fastest", rpc.AlgorithmFastest},
		{"round-robin", rpc.AlgorithmRoundRobin},
		{"failover", rpc.AlgorithmFailover},
		{"", rpc.AlgorithmFastest},
		{"random", rpc.AlgorithmFastest},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, rpc.ParseAlgorithm(tt.in))
		})
	}
}
