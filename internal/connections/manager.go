package connections

import (
	"context"
	"errors"
	"fmt"
)

// Manager combines the metadata store with the secret store, keeping the
// two in step: saving a connection writes credentials to the secret store
// and metadata to SQLite; deleting removes both.
type Manager struct {
	store   *Store
	secrets SecretStore
	// service names this application in the secret store.
	service string
}

// NewManager creates a Manager over the given store and secret store.
func NewManager(store *Store, secrets SecretStore, service string) *Manager {
	return &Manager{store: store, secrets: secrets, service: service}
}

// List returns all saved connections without credentials loaded.
func (m *Manager) List(ctx context.Context) ([]Connection, error) {
	return m.store.List(ctx)
}

// Get returns the named connection. With loadCredentials, the access and
// secret keys are resolved from the secret store; missing secrets resolve
// to empty strings rather than an error, matching a first-run keychain.
func (m *Manager) Get(ctx context.Context, name string, loadCredentials bool) (Connection, bool, error) {
	conn, ok, err := m.store.Get(ctx, name)
	if err != nil || !ok {
		return Connection{}, ok, err
	}
	if !loadCredentials {
		return conn, true, nil
	}

	if v, err := m.secrets.Get(m.service, secretKey(name, "access_key")); err == nil {
		conn.AccessKey = v
	} else if !errors.Is(err, ErrSecretNotFound) {
		return Connection{}, false, fmt.Errorf("resolving access key for %q: %w", name, err)
	}
	if v, err := m.secrets.Get(m.service, secretKey(name, "secret_key")); err == nil {
		conn.SecretKey = v
	} else if !errors.Is(err, ErrSecretNotFound) {
		return Connection{}, false, fmt.Errorf("resolving secret key for %q: %w", name, err)
	}
	return conn, true, nil
}

// Save persists the connection: credentials (when populated) go to the
// secret store, metadata to SQLite.
func (m *Manager) Save(ctx context.Context, conn Connection) error {
	if conn.AccessKey != "" {
		if err := m.secrets.Set(m.service, secretKey(conn.Name, "access_key"), conn.AccessKey); err != nil {
			return fmt.Errorf("storing access key for %q: %w", conn.Name, err)
		}
	}
	if conn.SecretKey != "" {
		if err := m.secrets.Set(m.service, secretKey(conn.Name, "secret_key"), conn.SecretKey); err != nil {
			return fmt.Errorf("storing secret key for %q: %w", conn.Name, err)
		}
	}
	conn.AccessKey = ""
	conn.SecretKey = ""
	return m.store.Save(ctx, conn)
}

// Delete removes the connection and its stored credentials. Secret removal
// is best-effort: a connection record without secrets must still be
// deletable.
func (m *Manager) Delete(ctx context.Context, name string) (bool, error) {
	_ = m.secrets.Delete(m.service, secretKey(name, "access_key"))
	_ = m.secrets.Delete(m.service, secretKey(name, "secret_key"))
	return m.store.Delete(ctx, name)
}

// Rename moves a connection and its credentials to a new name. It fails
// when oldName does not exist or newName is already taken.
func (m *Manager) Rename(ctx context.Context, oldName, newName string) (bool, error) {
	if _, taken, err := m.store.Get(ctx, newName); err != nil {
		return false, err
	} else if taken {
		return false, nil
	}

	conn, ok, err := m.Get(ctx, oldName, true)
	if err != nil || !ok {
		return false, err
	}

	conn.Name = newName
	if err := m.Save(ctx, conn); err != nil {
		return false, err
	}
	if _, err := m.Delete(ctx, oldName); err != nil {
		return false, err
	}
	return true, nil
}
