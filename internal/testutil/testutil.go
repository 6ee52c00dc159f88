// Package testutil provides shared test helpers for setting up stores and
// sample cards.
package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/starford/tally/internal/models"
	"github.com/starford/tally/internal/sqlstore"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *sqlstore.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "tally-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() {
		os.Remove(dbFile.Name())
		os.Remove(dbFile.Name() + "-wal")
		os.Remove(dbFile.Name() + "-shm")
	})

	db, err := sqlstore.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// NewCard returns a valid card submission with the given name.
func NewCard(name string) models.NewCard {
	return models.NewCard{
		Name:        name,
		Type:        models.TypePerson,
		Industry:    "Journalism",
		Country:     "Norway",
		Side:        models.SideGood,
		Description: "Reported on " + name + ".",
		Links:       []string{"https://example.com/" + name},
	}
}

// SeedCard inserts a card directly into the store.
func SeedCard(t *testing.T, db *sqlstore.DB, name string) models.Card {
	t.Helper()
	c, err := db.CreateCard(context.Background(), NewCard(name))
	if err != nil {
		t.Fatalf("seed card %q: %v", name, err)
	}
	return c
}
