package store

import (
	"testing"

	"github.com/certen/wavs/internal/wavserr"
	"github.com/certen/wavs/pkg/types"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestServiceStoreSaveGetRoundTrip(t *testing.T) {
	s := NewServiceStore(newTestDB(t))
	svc := types.Service{Name: "svc-a", Status: types.ServiceActive}

	id, err := s.Save(svc)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != svc.Name {
		t.Fatalf("expected name %q, got %q", svc.Name, got.Name)
	}
}

func TestServiceStoreSaveIsIdempotent(t *testing.T) {
	s := NewServiceStore(newTestDB(t))
	svc := types.Service{Name: "svc-a", Status: types.ServiceActive}

	id1, err := s.Save(svc)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	id2, err := s.Save(svc)
	if err != nil {
		t.Fatalf("Save (again): %v", err)
	}
	if id1 != id2 {
		t.Fatalf("expected identical IDs from saving identical bytes twice")
	}
}

func TestServiceStoreSaveRejectsNameCollision(t *testing.T) {
	s := NewServiceStore(newTestDB(t))
	if _, err := s.Save(types.Service{Name: "dup", Status: types.ServiceActive}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	_, err := s.Save(types.Service{Name: "dup", Status: types.ServicePaused})
	if err == nil {
		t.Fatalf("expected an error for a colliding service name")
	}
	if !wavserr.Is(err, wavserr.InvalidInput) {
		t.Fatalf("expected InvalidInput, got %v", err)
	}
}

func TestServiceStoreGetMissingReturnsNotFound(t *testing.T) {
	s := NewServiceStore(newTestDB(t))
	_, err := s.Get(types.ServiceID{})
	if err == nil {
		t.Fatalf("expected an error fetching an unknown service")
	}
	if !wavserr.Is(err, wavserr.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestServiceStoreList(t *testing.T) {
	s := NewServiceStore(newTestDB(t))
	for _, name := range []string{"a", "b", "c"} {
		if _, err := s.Save(types.Service{Name: name, Status: types.ServiceActive}); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	all, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 services, got %d", len(all))
	}
}

func TestServiceStoreRemoveIsIdempotent(t *testing.T) {
	s := NewServiceStore(newTestDB(t))
	id, err := s.Save(types.Service{Name: "removable", Status: types.ServiceActive})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := s.Remove(id); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := s.Get(id); !wavserr.Is(err, wavserr.NotFound) {
		t.Fatalf("expected NotFound after removal, got %v", err)
	}
	if err := s.Remove(id); err != nil {
		t.Fatalf("Remove (again) should be a no-op, got %v", err)
	}
}
