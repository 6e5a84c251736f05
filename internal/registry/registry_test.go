package registry

import (
	"errors"
	"testing"

	"github.com/kursadbilgin/enroll-engine/internal/domain"
)

func TestRegistry_AddGetDelete(t *testing.T) {
	t.Parallel()

	reg := New()
	task := domain.NewTask("t1", domain.AffiliationExpress, "Ana", 3)

	if err := reg.Add(task); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := reg.Add(task); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("duplicate Add() error = %v, want ErrInvalidState", err)
	}

	got, err := reg.Get("t1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID() != "t1" {
		t.Fatalf("Get() id = %s, want t1", got.ID())
	}

	if _, err := reg.Get("missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
	}

	if err := reg.Delete("t1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := reg.Get("t1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get() after delete error = %v, want ErrNotFound", err)
	}
	if err := reg.Delete("t1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Delete(missing) error = %v, want ErrNotFound", err)
	}
}

func TestRegistry_DeleteProcessingRejected(t *testing.T) {
	t.Parallel()

	reg := New()
	task := domain.NewTask("t1", domain.AffiliationExpress, "Ana", 1)
	if err := reg.Add(task); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := task.MarkProcessing(); err != nil {
		t.Fatalf("MarkProcessing() error = %v", err)
	}

	if err := reg.Delete("t1"); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("Delete() of processing task error = %v, want ErrInvalidState", err)
	}

	if err := task.Complete("r.xlsx", "done"); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if err := reg.Delete("t1"); err != nil {
		t.Fatalf("Delete() of completed task error = %v", err)
	}
	if reg.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", reg.Len())
	}
}

func TestRegistry_ListOrdering(t *testing.T) {
	t.Parallel()

	reg := New()
	for _, id := range []string{"b", "a", "c"} {
		if err := reg.Add(domain.NewTask(id, domain.AffiliationJunior, "Ana", 1)); err != nil {
			t.Fatalf("Add(%s) error = %v", id, err)
		}
	}

	list := reg.List()
	if len(list) != 3 {
		t.Fatalf("List() len = %d, want 3", len(list))
	}
}
