package connections

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// ErrSecretNotFound is returned when a credential field has no stored value.
var ErrSecretNotFound = errors.New("secret not found")

// SecretStore is the external secure-storage collaborator. Entries are
// keyed by (service, "<connection>:<field>"). Implementations decide where
// and how values are persisted.
type SecretStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// secretKey builds the per-field lookup key for a connection credential.
func secretKey(connectionName, field string) string {
	return connectionName + ":" + field
}

// MemorySecretStore is an in-memory SecretStore for tests and ephemeral use.
type MemorySecretStore struct {
	mu      sync.Mutex
	secrets map[string]string
}

// NewMemorySecretStore creates an empty in-memory secret store.
func NewMemorySecretStore() *MemorySecretStore {
	return &MemorySecretStore{secrets: make(map[string]string)}
}

func (m *MemorySecretStore) Get(service, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.secrets[service+"/"+key]
	if !ok {
		return "", ErrSecretNotFound
	}
	return v, nil
}

func (m *MemorySecretStore) Set(service, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets[service+"/"+key] = value
	return nil
}

func (m *MemorySecretStore) Delete(service, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.secrets, service+"/"+key)
	return nil
}

// EnvSecretStore resolves credentials from environment variables of the
// form <SERVICE>_<CONNECTION>_<FIELD>, uppercased with non-alphanumerics
// mapped to underscores. It is read-only: Set and Delete report an error so
// callers know nothing was stored.
type EnvSecretStore struct{}

func (EnvSecretStore) Get(service, key string) (string, error) {
	v, ok := os.LookupEnv(envVarName(service, key))
	if !ok {
		return "", ErrSecretNotFound
	}
	return v, nil
}

func (EnvSecretStore) Set(service, key, value string) error {
	return fmt.Errorf("env secret store is read-only: set %s via environment", envVarName(service, key))
}

func (EnvSecretStore) Delete(service, key string) error {
	return nil
}

// CredentialEnvVars returns the environment variable names the
// EnvSecretStore consults for a connection's access and secret keys.
func CredentialEnvVars(service, connectionName string) (accessVar, secretVar string) {
	return envVarName(service, secretKey(connectionName, "access_key")),
		envVarName(service, secretKey(connectionName, "secret_key"))
}

func envVarName(service, key string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - ('a' - 'A')
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, service+"_"+key)
	return mapped
}
