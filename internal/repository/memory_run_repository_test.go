package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/andresuchdata/netplan/internal/domain"
)

func TestMemoryRunRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRunRepository().(*memoryRunRepository)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	repo.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	obj := 890.0
	for _, id := range []string{"a", "b", "c"} {
		run := &domain.RunRecord{RunID: id, Status: domain.StatusOptimal, Solver: "bnb", Objective: &obj, Result: []byte(`{"run_id":"` + id + `"}`)}
		if err := repo.SaveRun(ctx, run); err != nil {
			t.Fatalf("SaveRun(%s): %v", id, err)
		}
	}

	got, err := repo.GetRun(ctx, "b")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if string(got.Result) != `{"run_id":"b"}` || got.Status != domain.StatusOptimal {
		t.Fatalf("GetRun = %+v", got)
	}
	got.Result[0] = 'x'
	again, _ := repo.GetRun(ctx, "b")
	if again.Result[0] != '{' {
		t.Fatalf("stored result was mutated through a returned copy")
	}

	if _, err := repo.GetRun(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("GetRun(missing) err = %v, want ErrRunNotFound", err)
	}

	list, err := repo.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(list) != 2 || list[0].RunID != "c" || list[1].RunID != "b" {
		t.Fatalf("ListRuns = %+v, want newest first [c b]", list)
	}
}

func TestMemoryRunRepositoryKeepsCreatedAtOnResave(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRunRepository()
	if err := repo.SaveRun(ctx, &domain.RunRecord{RunID: "r", Status: domain.StatusInfeasible}); err != nil {
		t.Fatal(err)
	}
	first, _ := repo.GetRun(ctx, "r")
	if err := repo.SaveRun(ctx, &domain.RunRecord{RunID: "r", Status: domain.StatusOptimal, CreatedAt: first.CreatedAt.Add(time.Hour)}); err != nil {
		t.Fatal(err)
	}
	second, _ := repo.GetRun(ctx, "r")
	if !second.CreatedAt.Equal(first.CreatedAt) || second.Status != domain.StatusOptimal {
		t.Fatalf("resave = %+v, first = %+v", second, first)
	}
}
