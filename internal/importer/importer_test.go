package importer

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/tally/internal/cardservice"
	"github.com/starford/tally/internal/models"
	"github.com/starford/tally/internal/sqlstore"
	"github.com/starford/tally/internal/testutil"
)

const adaYAML = `name: Ada
type: Person
industry: Mathematics
country: United Kingdom
side: GOOD
description: First programmer.
links:
  - https://example.com/ada
  - "  "
`

const listYAML = `cards:
  - name: Acme
    type: organization
    industry: Mining
    country: Chile
    side: bad
    description: Tailings spill.
  - name: Globex
    type: organization
    industry: Energy
    country: USA
    side: good
    description: Community solar.
`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func setup(t *testing.T) (string, *sqlstore.DB, *cardservice.Service, *Importer) {
	t.Helper()
	dir := t.TempDir()
	db := testutil.TestDB(t)
	svc := cardservice.NewService(db, cardservice.WithLogger(quietLogger()))
	return dir, db, svc, New(svc, dir, quietLogger())
}

func TestDecode(t *testing.T) {
	cards, err := Decode([]byte(adaYAML))
	if err != nil {
		t.Fatalf("Decode single: %v", err)
	}
	if len(cards) != 1 || cards[0].Name != "Ada" || len(cards[0].Links) != 2 {
		t.Errorf("single = %+v", cards)
	}

	cards, err = Decode([]byte(listYAML))
	if err != nil {
		t.Fatalf("Decode list: %v", err)
	}
	if len(cards) != 2 || cards[1].Name != "Globex" {
		t.Errorf("list = %+v", cards)
	}

	if cards, err := Decode([]byte("  \n")); err != nil || cards != nil {
		t.Errorf("empty = %v, %v", cards, err)
	}
	if _, err := Decode([]byte("name: [unterminated")); err == nil {
		t.Error("expected parse error")
	}
}

func TestSyncImportsAndSkipsUnchanged(t *testing.T) {
	dir, db, _, im := setup(t)
	ctx := context.Background()
	writeFile(t, dir, "ada.yaml", adaYAML)
	writeFile(t, dir, "orgs/list.yml", listYAML)
	writeFile(t, dir, "notes.txt", "ignored")

	rep, err := im.Sync(ctx)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if rep.Files != 2 || rep.Cards != 3 || rep.Failed != 0 {
		t.Errorf("first report = %+v", rep)
	}

	cards, err := db.ListCards(ctx, models.CardFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(cards) != 3 {
		t.Fatalf("cards = %d", len(cards))
	}

	rep, err = im.Sync(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Unchanged != 2 || rep.Cards != 0 {
		t.Errorf("second report = %+v", rep)
	}
}

func TestSyncPreservesVotesAndRepairsCounters(t *testing.T) {
	dir, db, svc, im := setup(t)
	ctx := context.Background()
	writeFile(t, dir, "ada.yaml", adaYAML)
	if _, err := im.Sync(ctx); err != nil {
		t.Fatal(err)
	}

	cards, _ := db.ListCards(ctx, models.CardFilter{})
	ada := cards[0]
	if _, err := svc.CastVote(ctx, ada.ID, "1.1.1.1", "like"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Conn().Exec(`UPDATE cards SET dislikes = 9 WHERE id = ?`, ada.ID); err != nil {
		t.Fatal(err)
	}

	writeFile(t, dir, "ada.yaml", adaYAML+"image_url: https://example.com/ada.png\n")
	rep, err := im.Sync(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Cards != 1 || len(rep.Repaired) != 1 {
		t.Errorf("report = %+v", rep)
	}

	got, err := db.GetCard(ctx, ada.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Likes != 1 || got.Dislikes != 0 {
		t.Errorf("counters %d/%d, want 1/0", got.Likes, got.Dislikes)
	}
	if got.ImageURL == nil || *got.ImageURL != "https://example.com/ada.png" {
		t.Errorf("imageUrl = %v", got.ImageURL)
	}
	if st, _ := svc.VoteStatus(ctx, ada.ID, "1.1.1.1"); !st.Voted {
		t.Error("vote lost during import")
	}
}

func TestSyncSkipsInvalidFiles(t *testing.T) {
	dir, _, _, im := setup(t)
	writeFile(t, dir, "bad.yaml", "name: Nobody\ntype: robot\n")
	writeFile(t, dir, "broken.yaml", "name: [")
	writeFile(t, dir, "ada.yaml", adaYAML)

	rep, err := im.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if rep.Cards != 1 || rep.Failed != 2 {
		t.Errorf("report = %+v", rep)
	}

	// Failed files are retried on the next pass.
	rep, _ = im.Sync(context.Background())
	if rep.Failed != 2 || rep.Unchanged != 1 {
		t.Errorf("second report = %+v", rep)
	}
}

func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestWatchImportsNewFiles(t *testing.T) {
	dir, db, _, im := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- im.Watch(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	time.Sleep(100 * time.Millisecond)
	writeFile(t, dir, "ada.yaml", adaYAML)

	eventually(t, 3*time.Second, 50*time.Millisecond, func() bool {
		cards, err := db.ListCards(context.Background(), models.CardFilter{})
		return err == nil && len(cards) == 1
	}, "watcher did not import new file")

	if err := os.MkdirAll(filepath.Join(dir, "orgs"), 0o755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	writeFile(t, dir, "orgs/list.yaml", listYAML)

	eventually(t, 3*time.Second, 50*time.Millisecond, func() bool {
		cards, err := db.ListCards(context.Background(), models.CardFilter{})
		return err == nil && len(cards) == 3
	}, "watcher did not import file in new directory")
}
