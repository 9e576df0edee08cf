package connections

import (
	"context"
	"testing"
)

func newTestManager(t *testing.T) (*Manager, *MemorySecretStore) {
	t.Helper()
	store := newTestStore(t)
	secrets := NewMemorySecretStore()
	return NewManager(store, secrets, "lolrus-test"), secrets
}

func TestManagerSaveAndGet(t *testing.T) {
	m, secrets := newTestManager(t)
	ctx := context.Background()

	conn := Connection{
		Name:      "prod",
		Endpoint:  "https://us-east-1.linodeobjects.com",
		Region:    "us-east-1",
		AccessKey: "AKIA123",
		SecretKey: "shhh",
	}
	if err := m.Save(ctx, conn); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Credentials live in the secret store only.
	if v, err := secrets.Get("lolrus-test", "prod:access_key"); err != nil || v != "AKIA123" {
		t.Errorf("access key in secret store = %q, %v", v, err)
	}
	bare, ok, err := m.Get(ctx, "prod", false)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if bare.AccessKey != "" || bare.SecretKey != "" {
		t.Error("credentials returned without loadCredentials")
	}

	full, ok, err := m.Get(ctx, "prod", true)
	if err != nil || !ok {
		t.Fatalf("Get with credentials: ok=%v err=%v", ok, err)
	}
	if full.AccessKey != "AKIA123" || full.SecretKey != "shhh" {
		t.Errorf("credentials not resolved: %+v", full)
	}
}

func TestManagerGetMissingSecretsTolerated(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	// Metadata without secrets, as after a keychain wipe.
	if err := m.Save(ctx, Connection{Name: "bare", Endpoint: "https://s3.example.com"}); err != nil {
		t.Fatal(err)
	}

	conn, ok, err := m.Get(ctx, "bare", true)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("connection not found")
	}
	if conn.AccessKey != "" || conn.SecretKey != "" {
		t.Errorf("expected empty credentials, got %+v", conn)
	}
}

func TestManagerDelete(t *testing.T) {
	m, secrets := newTestManager(t)
	ctx := context.Background()

	if err := m.Save(ctx, Connection{Name: "c", Endpoint: "https://s3.example.com", AccessKey: "a", SecretKey: "s"}); err != nil {
		t.Fatal(err)
	}

	existed, err := m.Delete(ctx, "c")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !existed {
		t.Error("delete reported not found")
	}
	if _, err := secrets.Get("lolrus-test", "c:access_key"); err == nil {
		t.Error("access key not removed from secret store")
	}
	if _, ok, _ := m.Get(ctx, "c", false); ok {
		t.Error("connection still present after delete")
	}
}

func TestManagerRename(t *testing.T) {
	m, secrets := newTestManager(t)
	ctx := context.Background()

	if err := m.Save(ctx, Connection{Name: "old", Endpoint: "https://s3.example.com", AccessKey: "a", SecretKey: "s"}); err != nil {
		t.Fatal(err)
	}

	renamed, err := m.Rename(ctx, "old", "new")
	if err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if !renamed {
		t.Fatal("rename reported failure")
	}

	if _, ok, _ := m.Get(ctx, "old", false); ok {
		t.Error("old name still present")
	}
	conn, ok, err := m.Get(ctx, "new", true)
	if err != nil || !ok {
		t.Fatalf("Get new name: ok=%v err=%v", ok, err)
	}
	// Credentials follow the rename.
	if conn.AccessKey != "a" || conn.SecretKey != "s" {
		t.Errorf("credentials not migrated: %+v", conn)
	}
	if _, err := secrets.Get("lolrus-test", "old:access_key"); err == nil {
		t.Error("old secret entry not removed")
	}
}

func TestManagerRenameTargetTaken(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	for _, name := range []string{"a", "b"} {
		if err := m.Save(ctx, Connection{Name: name, Endpoint: "https://s3.example.com"}); err != nil {
			t.Fatal(err)
		}
	}

	renamed, err := m.Rename(ctx, "a", "b")
	if err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if renamed {
		t.Error("rename onto existing name should refuse")
	}
	if _, ok, _ := m.Get(ctx, "a", false); !ok {
		t.Error("source connection lost by refused rename")
	}
}

func TestManagerRenameMissingSource(t *testing.T) {
	m, _ := newTestManager(t)

	renamed, err := m.Rename(context.Background(), "ghost", "new")
	if err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if renamed {
		t.Error("rename of missing connection should report false")
	}
}
