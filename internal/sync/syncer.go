// Package sync imports sale deployments written by the deployment scripts
// (deployments/<network>.json) into the config.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Mohsinsiddi/w3sale/internal/config"
)

// NetworkPlaceholder in a source is replaced by the network name.
const NetworkPlaceholder = "{network}"

var ErrNoSource = errors.New("no deployments source configured")

// Deployment is one deployments/<network>.json file. Field names follow the
// deployment scripts; Sale and Receipt are accepted as aliases.
type Deployment struct {
	Crowdsale   string `json:"Crowdsale"`
	Sale        string `json:"Sale,omitempty"`
	Token       string `json:"Token"`
	ProofNFT    string `json:"ProofNFT"`
	Receipt     string `json:"Receipt,omitempty"`
	DeployBlock uint64 `json:"DeployBlock,omitempty"`
}

// Syncer fetches deployment files and updates the stored sale entries.
type Syncer struct {
	cfg    *config.Config
	client *http.Client
}

// New creates a new Syncer.
func New(cfg *config.Config) *Syncer {
	return &Syncer{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// SetSource sets the deployments location: an http(s) URL or a file path,
// optionally containing {network}.
func (s *Syncer) SetSource(src string) error {
	sc, err := s.cfg.LoadSync()
	if err != nil {
		return err
	}
	sc.Source = src
	return s.cfg.SaveSync(sc)
}

// Run imports the deployment for network from the configured source, merges
// it over the stored entry and saves the config.
func (s *Syncer) Run(ctx context.Context, network string) (config.SaleEntry, error) {
	sc, err := s.cfg.LoadSync()
	if err != nil {
		return config.SaleEntry{}, fmt.Errorf("loading sync config: %w", err)
	}
	if sc.Source == "" {
		return config.SaleEntry{}, fmt.Errorf("%w: run `w3sale sync set-source <url|path>`", ErrNoSource)
	}

	d, err := s.fetch(ctx, strings.ReplaceAll(sc.Source, NetworkPlaceholder, network))
	if err != nil {
		return config.SaleEntry{}, fmt.Errorf("fetching deployment: %w", err)
	}

	entry, err := merge(s.cfg.Sale(network), d)
	if err != nil {
		return config.SaleEntry{}, err
	}
	s.cfg.SetSale(network, entry)
	if err := s.cfg.Save(); err != nil {
		return config.SaleEntry{}, fmt.Errorf("saving config: %w", err)
	}

	sc.LastSynced = time.Now().UTC().Format(time.RFC3339)
	return entry, s.cfg.SaveSync(sc)
}

// merge overlays the non-empty fields of d on e.
func merge(e config.SaleEntry, d *Deployment) (config.SaleEntry, error) {
	fields := []struct {
		key string
		dst *string
		val string
	}{
		{"Crowdsale", &e.Sale, first(d.Crowdsale, d.Sale)},
		{"Token", &e.Token, d.Token},
		{"ProofNFT", &e.Receipt, first(d.ProofNFT, d.Receipt)},
	}
	for _, f := range fields {
		if f.val == "" {
			continue
		}
		if !common.IsHexAddress(f.val) {
			return e, config.Invalid(f.key, f.val)
		}
		*f.dst = common.HexToAddress(f.val).Hex()
	}
	if d.DeployBlock != 0 {
		e.DeployBlock = d.DeployBlock
	}
	if e.Sale == "" {
		return e, config.Missing("Crowdsale", "the deployment file has no Crowdsale address")
	}
	return e, nil
}

func (s *Syncer) fetch(ctx context.Context, src string) (*Deployment, error) {
	var body []byte
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
		if err != nil {
			return nil, err
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%s: HTTP %d", src, resp.StatusCode)
		}
		if body, err = io.ReadAll(resp.Body); err != nil {
			return nil, err
		}
	} else {
		var err error
		if body, err = os.ReadFile(src); err != nil {
			return nil, err
		}
	}

	var d Deployment
	if err := json.Unmarshal(body, &d); err != nil {
		return nil, fmt.Errorf("parsing deployment: %w", err)
	}
	return &d, nil
}

func first(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
