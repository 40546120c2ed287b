// Package txlog keeps a local journal of submitted sale transactions.
package txlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Entry types.
const (
	TypePurchase = "purchase"
	TypeWithdraw = "withdraw"
)

// Entry is one submitted transaction.
type Entry struct {
	Type      string    `json:"type"`
	Hash      string    `json:"hash"`
	Time      time.Time `json:"ts"`
	Network   string    `json:"network,omitempty"`
	Candidate string    `json:"candidate,omitempty"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
	Value     string    `json:"value,omitempty"` // wei, decimal string
}

// Journal appends entries to a JSON array file.
type Journal struct {
	mu   sync.Mutex
	path string
}

func Open(path string) *Journal {
	return &Journal{path: path}
}

// Record appends e, stamping the time if unset.
func (j *Journal) Record(e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	entries, err := j.read()
	if err != nil {
		return err
	}
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	entries = append(entries, e)

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(j.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(j.path, data, 0o600)
}

// List returns the entries, newest last. A missing journal is empty.
func (j *Journal) List() ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.read()
}

// Last returns up to n most recent entries, newest first, optionally
// filtered by network.
func (j *Journal) Last(n int, network string) ([]Entry, error) {
	all, err := j.List()
	if err != nil {
		return nil, err
	}
	var out []Entry
	for i := len(all) - 1; i >= 0 && (n <= 0 || len(out) < n); i-- {
		if network == "" || all[i].Network == network {
			out = append(out, all[i])
		}
	}
	return out, nil
}

func (j *Journal) read() ([]Entry, error) {
	data, err := os.ReadFile(j.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading tx journal: %w", err)
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing tx journal %s: %w", j.path, err)
	}
	return entries, nil
}
