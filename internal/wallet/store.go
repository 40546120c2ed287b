package wallet

import (
	"github.com/Mohsinsiddi/w3sale/internal/config"
)

type memStore struct {
	wallets []*Wallet
}

func (s *memStore) Load() ([]*Wallet, error) {
	return s.wallets, nil
}

func (s *memStore) Save(wallets []*Wallet) error {
	s.wallets = wallets
	return nil
}

// ConfigStore persists wallets to wallets.json in the config directory.
type ConfigStore struct {
	cfg *config.Config
}

func NewConfigStore(cfg *config.Config) *ConfigStore {
	return &ConfigStore{cfg: cfg}
}

func (s *ConfigStore) Load() ([]*Wallet, error) {
	wf, err := s.cfg.LoadWallets()
	if err != nil {
		return nil, err
	}
	out := make([]*Wallet, 0, len(wf.Wallets))
	for _, e := range wf.Wallets {
		out = append(out, &Wallet{
			Name:      e.Name,
			Address:   e.Address,
			Type:      e.Type,
			KeyRef:    e.KeyRef,
			IsDefault: e.IsDefault,
			CreatedAt: e.CreatedAt,
		})
	}
	return out, nil
}

func (s *ConfigStore) Save(wallets []*Wallet) error {
	wf := &config.WalletsFile{Wallets: make([]config.Wallet, 0, len(wallets))}
	for _, w := range wallets {
		wf.Wallets = append(wf.Wallets, config.Wallet{
			Name:      w.Name,
			Address:   w.Address,
			Type:      w.Type,
			KeyRef:    w.KeyRef,
			IsDefault: w.IsDefault,
			CreatedAt: w.CreatedAt,
		})
	}
	return s.cfg.SaveWallets(wf)
}
