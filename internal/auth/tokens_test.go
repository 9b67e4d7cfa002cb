package auth

import (
	"path/filepath"
	"testing"

	"github.com/matheus3301/souk/internal/store"
)

func testBackend(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "souk.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestStorePersistsAcrossInstances(t *testing.T) {
	db := testBackend(t)

	s, err := NewStore(db)
	if err != nil {
		t.Fatal(err)
	}
	if s.HasSession() {
		t.Fatal("fresh store should have no session")
	}
	if err := s.Set("access-1", "refresh-1"); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewStore(db)
	if err != nil {
		t.Fatal(err)
	}
	if reopened.Access() != "access-1" || reopened.Refresh() != "refresh-1" {
		t.Errorf("tokens = %+v, want persisted pair", reopened.Tokens())
	}
}

func TestSetAccessKeepsRefresh(t *testing.T) {
	s, _ := NewStore(nil)
	_ = s.Set("a", "r")
	if err := s.SetAccess("a2"); err != nil {
		t.Fatal(err)
	}
	if s.Access() != "a2" || s.Refresh() != "r" {
		t.Errorf("tokens = %+v, want a2/r", s.Tokens())
	}
}

func TestClearRemovesBoth(t *testing.T) {
	db := testBackend(t)
	s, _ := NewStore(db)
	_ = s.Set("a", "r")

	if err := s.Clear(); err != nil {
		t.Fatal(err)
	}
	if s.HasSession() || s.Refresh() != "" {
		t.Errorf("tokens after clear = %+v", s.Tokens())
	}
	persisted, _ := db.LoadCredentials()
	if persisted.Access != "" || persisted.Refresh != "" {
		t.Errorf("persisted after clear = %+v", persisted)
	}
}
