package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/roach88/vox/internal/ir"
	"github.com/roach88/vox/internal/testutil"
	"github.com/roach88/vox/internal/workflow"
)

func TestAppendMatch_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	want := createTestResult("NEW_ORDER", "neue bestellung für tisch 5")
	want.Params = ir.NewObject(
		ir.P("table", ir.Int(5)),
		ir.P("amount", ir.Float(12.5)),
		ir.P("note", ir.String("ohne zwiebeln")),
	)
	at := epoch.Add(1500 * time.Millisecond)

	seq, err := s.AppendMatch(ctx, want, at)
	if err != nil {
		t.Fatalf("AppendMatch() failed: %v", err)
	}
	if seq != 1 {
		t.Errorf("seq = %d, want 1", seq)
	}

	got, err := s.RecentMatches(ctx, 0)
	if err != nil {
		t.Fatalf("RecentMatches() failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if diff := cmp.Diff(want, got[0].Result); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
	if !got[0].RecordedAt.Equal(at) {
		t.Errorf("RecordedAt = %v, want %v", got[0].RecordedAt, at)
	}
}

func TestAppendMatch_FailedMatch(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	failed := ir.MatchResult{Original: "xyz", Preprocessed: "xyz"}
	if _, err := s.AppendMatch(ctx, failed, epoch); err != nil {
		t.Fatalf("AppendMatch() failed: %v", err)
	}

	got, err := s.MatchesForIntent(ctx, "", 0)
	if err != nil {
		t.Fatalf("MatchesForIntent() failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].Result.Matched() {
		t.Error("failed match read back as matched")
	}
	if got[0].Result.Params == nil {
		t.Error("Params should be an empty object, got nil")
	}
}

func TestSaveSnapshot_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	st := exportTestState(t)

	hash, inserted, err := s.SaveSnapshot(ctx, "kiosk-1", st)
	if err != nil {
		t.Fatalf("SaveSnapshot() failed: %v", err)
	}
	if !inserted {
		t.Error("first save should insert")
	}
	wantHash, _ := st.Hash()
	if hash != wantHash {
		t.Errorf("hash = %q, want %q", hash, wantHash)
	}

	got, err := s.LoadSnapshot(ctx, "kiosk-1")
	if err != nil {
		t.Fatalf("LoadSnapshot() failed: %v", err)
	}
	gotHash, err := got.Hash()
	if err != nil {
		t.Fatalf("Hash() failed: %v", err)
	}
	if gotHash != hash {
		t.Errorf("loaded snapshot hash = %q, want %q", gotHash, hash)
	}
	if got.Current.Type != ir.ContextPayment {
		t.Errorf("Current.Type = %q, want payment", got.Current.Type)
	}
}

func TestSaveSnapshot_SkipsUnchangedState(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	st := exportTestState(t)

	if _, _, err := s.SaveSnapshot(ctx, "kiosk-1", st); err != nil {
		t.Fatalf("SaveSnapshot() failed: %v", err)
	}
	st.ExportedAt = st.ExportedAt.Add(time.Minute)
	_, inserted, err := s.SaveSnapshot(ctx, "kiosk-1", st)
	if err != nil {
		t.Fatalf("second SaveSnapshot() failed: %v", err)
	}
	if inserted {
		t.Error("unchanged state (only ExportedAt differs) should not insert")
	}

	// Same state under another name is stored separately.
	if _, inserted, _ := s.SaveSnapshot(ctx, "kiosk-2", st); !inserted {
		t.Error("save under a new name should insert")
	}
}

func TestSaveSnapshot_ReturnToEarlierStateInserts(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	m := workflow.NewManager(
		workflow.WithClock(testutil.NewFakeClock(time.Time{})),
		workflow.WithIDGenerator(testutil.NewSequentialIDs("ctx")),
	)
	defer m.Close()

	a := m.ExportState()
	if err := m.SetContext(ir.ContextMenuBrowsing, nil); err != nil {
		t.Fatal(err)
	}
	b := m.ExportState()

	for i, st := range []workflow.State{a, b, a} {
		if _, inserted, err := s.SaveSnapshot(ctx, "k", st); err != nil || !inserted {
			t.Fatalf("save %d: inserted=%v err=%v", i, inserted, err)
		}
	}

	infos, err := s.Snapshots(ctx, "k")
	if err != nil {
		t.Fatalf("Snapshots() failed: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("len = %d, want 3", len(infos))
	}
	if infos[0].Hash != infos[2].Hash || infos[0].Hash == infos[1].Hash {
		t.Errorf("hashes = %q, %q, %q", infos[0].Hash, infos[1].Hash, infos[2].Hash)
	}

	latest, err := s.LoadSnapshot(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if latest.Current.Type != ir.ContextIdle {
		t.Errorf("latest Current.Type = %q, want idle", latest.Current.Type)
	}
}

func TestSaveSnapshot_EmptyName(t *testing.T) {
	s := createTestStore(t)
	if _, _, err := s.SaveSnapshot(context.Background(), "", workflow.State{}); err == nil {
		t.Error("expected error for empty name")
	}
}

func TestLoadSnapshot_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.LoadSnapshot(context.Background(), "missing")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("err = %v, want sql.ErrNoRows", err)
	}
}

// exportTestState drives a manager into payment with a local and a
// global variable and exports it.
func exportTestState(t *testing.T) workflow.State {
	t.Helper()
	m := workflow.NewManager(
		workflow.WithClock(testutil.NewFakeClock(time.Time{})),
		workflow.WithIDGenerator(testutil.NewSequentialIDs("ctx")),
	)
	t.Cleanup(func() { m.Close() })

	for _, ct := range []ir.ContextType{ir.ContextOrderCreation, ir.ContextCartManagement, ir.ContextPayment} {
		if err := m.SetContext(ct, nil); err != nil {
			t.Fatalf("SetContext(%s): %v", ct, err)
		}
	}
	if err := m.SetVariable("amount", ir.Float(42.5), workflow.Local); err != nil {
		t.Fatal(err)
	}
	if err := m.SetVariable("table", ir.Int(5), workflow.Global); err != nil {
		t.Fatal(err)
	}
	return m.ExportState()
}

func TestPruneMatches(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for i, intent := range []string{"NEW_ORDER", "SHOW_MENU", "PAY"} {
		at := epoch.Add(time.Duration(i) * time.Hour).Add(500 * time.Millisecond)
		if _, err := s.AppendMatch(ctx, createTestResult(intent, "x"), at); err != nil {
			t.Fatalf("AppendMatch() failed: %v", err)
		}
	}

	// Cutoff on a whole second sorts correctly against fractional times.
	n, err := s.PruneMatches(ctx, epoch.Add(time.Hour))
	if err != nil {
		t.Fatalf("PruneMatches() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("PruneMatches() removed %d, want 1", n)
	}

	recs, err := s.RecentMatches(ctx, 0)
	if err != nil {
		t.Fatalf("RecentMatches() failed: %v", err)
	}
	var got []string
	for _, r := range recs {
		got = append(got, r.Result.Intent)
	}
	if diff := cmp.Diff([]string{"PAY", "SHOW_MENU"}, got); diff != "" {
		t.Errorf("remaining intents mismatch (-want +got):\n%s", diff)
	}

	n, err = s.PruneMatches(ctx, epoch)
	if err != nil || n != 0 {
		t.Errorf("PruneMatches(epoch) = %d, %v; want 0, nil", n, err)
	}
}
