package store

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestRecentMatches_NewestFirstWithLimit(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		r := createTestResult("NEW_ORDER", fmt.Sprintf("tisch %d", i))
		// Same timestamp for all rows; order must come from seq.
		if _, err := s.AppendMatch(ctx, r, epoch); err != nil {
			t.Fatalf("AppendMatch(%d) failed: %v", i, err)
		}
	}

	got, err := s.RecentMatches(ctx, 3)
	if err != nil {
		t.Fatalf("RecentMatches() failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, want := range []string{"tisch 4", "tisch 3", "tisch 2"} {
		if got[i].Result.Original != want {
			t.Errorf("got[%d] = %q, want %q", i, got[i].Result.Original, want)
		}
	}
	if got[0].Seq != 5 {
		t.Errorf("got[0].Seq = %d, want 5", got[0].Seq)
	}
}

func TestRecentMatches_Empty(t *testing.T) {
	s := createTestStore(t)

	got, err := s.RecentMatches(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentMatches() failed: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("got %v, want empty non-nil slice", got)
	}
}

func TestMatchesForIntentAndCounts(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	intents := []string{"NEW_ORDER", "PAY", "NEW_ORDER", "", "NEW_ORDER"}
	for i, intent := range intents {
		r := createTestResult(intent, fmt.Sprintf("t%d", i))
		if _, err := s.AppendMatch(ctx, r, epoch.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatal(err)
		}
	}

	orders, err := s.MatchesForIntent(ctx, "NEW_ORDER", 2)
	if err != nil {
		t.Fatalf("MatchesForIntent() failed: %v", err)
	}
	if len(orders) != 2 || orders[0].Result.Original != "t4" || orders[1].Result.Original != "t2" {
		t.Errorf("orders = %+v", orders)
	}

	counts, err := s.IntentCounts(ctx)
	if err != nil {
		t.Fatalf("IntentCounts() failed: %v", err)
	}
	want := map[string]int{"NEW_ORDER": 3, "PAY": 1, "": 1}
	if fmt.Sprint(counts) != fmt.Sprint(want) {
		t.Errorf("counts = %v, want %v", counts, want)
	}
}

func TestSnapshots_EmptyName(t *testing.T) {
	s := createTestStore(t)

	infos, err := s.Snapshots(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Snapshots() failed: %v", err)
	}
	if len(infos) != 0 {
		t.Errorf("len = %d, want 0", len(infos))
	}
}
