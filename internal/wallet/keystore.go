package wallet

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/99designs/keyring"
)

const (
	keychainService = "w3sale"
	// envKey, when set, supplies the private key for every signing wallet.
	// Intended for CI and scripted runs where no keychain is available.
	envKey = "W3SALE_KEY"
)

// ErrKeystoreUnavailable is returned when no keychain backend could be opened.
var ErrKeystoreUnavailable = errors.New("keystore not available")

// KeyBackend stores private keys by reference.
type KeyBackend interface {
	Store(name, hexKey string) (ref string, err error)
	Retrieve(ref string) (string, error)
	Delete(ref string) error
}

// Keystore wraps OS keychain access.
type Keystore struct {
	ring keyring.Keyring
}

var (
	defaultOnce sync.Once
	defaultKS   *Keystore
)

// DefaultKeystore returns a keystore backed by the OS keychain. The keychain
// is opened once per process.
func DefaultKeystore() *Keystore {
	defaultOnce.Do(func() {
		cfg := keyring.Config{
			ServiceName:              keychainService,
			KeychainTrustApplication: true,
		}

		// On Linux without a GUI, fall back to file-based storage.
		if runtime.GOOS == "linux" {
			cfg.AllowedBackends = []keyring.BackendType{
				keyring.SecretServiceBackend,
				keyring.KWalletBackend,
				keyring.FileBackend,
			}
		}

		ring, err := keyring.Open(cfg)
		if err != nil {
			ring, _ = keyring.Open(keyring.Config{
				ServiceName:     keychainService,
				AllowedBackends: []keyring.BackendType{keyring.FileBackend},
			})
		}
		defaultKS = &Keystore{ring: ring}
	})
	return defaultKS
}

// NewFileKeystore opens an encrypted file keystore in dir. password supplies
// the passphrase when the backend needs it.
func NewFileKeystore(dir string, password func(string) (string, error)) (*Keystore, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName:      keychainService,
		AllowedBackends:  []keyring.BackendType{keyring.FileBackend},
		FileDir:          dir,
		FilePasswordFunc: password,
	})
	if err != nil {
		return nil, fmt.Errorf("opening file keystore: %w", err)
	}
	return &Keystore{ring: ring}, nil
}

// Store saves a private key for a wallet name and returns a reference key.
func (k *Keystore) Store(name, hexKey string) (string, error) {
	if k.ring == nil {
		return "", ErrKeystoreUnavailable
	}
	ref := keychainService + "." + name
	err := k.ring.Set(keyring.Item{
		Key:  ref,
		Data: []byte(normaliseHexKey(hexKey)),
	})
	if err != nil {
		return "", fmt.Errorf("keychain store: %w", err)
	}
	return ref, nil
}

// Retrieve fetches a private key by its reference. W3SALE_KEY takes
// precedence over the keychain.
func (k *Keystore) Retrieve(ref string) (string, error) {
	if v := os.Getenv(envKey); v != "" {
		return normaliseHexKey(v), nil
	}
	if k.ring == nil {
		return "", ErrKeystoreUnavailable
	}
	item, err := k.ring.Get(ref)
	if err != nil {
		return "", fmt.Errorf("keychain retrieve: %w", err)
	}
	return normaliseHexKey(string(item.Data)), nil
}

// Delete removes a stored key.
func (k *Keystore) Delete(ref string) error {
	if k.ring == nil {
		return nil
	}
	err := k.ring.Remove(ref)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("keychain delete: %w", err)
	}
	return nil
}

// InMemoryKeystore stores keys in memory (for tests).
type InMemoryKeystore struct {
	mu   sync.Mutex
	data map[string]string
}

func NewInMemoryKeystore() *InMemoryKeystore {
	return &InMemoryKeystore{data: make(map[string]string)}
}

func (k *InMemoryKeystore) Store(name, hexKey string) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	ref := keychainService + "." + name
	k.data[ref] = normaliseHexKey(hexKey)
	return ref, nil
}

func (k *InMemoryKeystore) Retrieve(ref string) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	v, ok := k.data[ref]
	if !ok {
		return "", fmt.Errorf("key not found: %s", ref)
	}
	return v, nil
}

func (k *InMemoryKeystore) Delete(ref string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.data, ref)
	return nil
}

func normaliseHexKey(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		return s[2:]
	}
	return s
}
