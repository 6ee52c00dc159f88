// Package importer loads cards from YAML files into the store and keeps
// counters consistent with the vote ledger afterwards.
package importer

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/starford/tally/internal/models"
)

// CardImporter is the service surface the importer writes through.
type CardImporter interface {
	ImportCard(ctx context.Context, in models.NewCard) (models.Card, error)
	RecomputeCounters(ctx context.Context) ([]models.Drift, error)
}

// Report summarizes one Sync pass.
type Report struct {
	Files     int
	Unchanged int
	Cards     int
	Failed    int
	Repaired  []models.Drift
}

// Importer loads card files from a directory.
type Importer struct {
	svc    CardImporter
	dir    string
	logger *slog.Logger

	mu        sync.Mutex
	checksums map[string]string
}

// New creates an Importer for dir.
func New(svc CardImporter, dir string, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		svc:       svc,
		dir:       dir,
		logger:    logger,
		checksums: make(map[string]string),
	}
}

func isCardFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Sync imports every card file whose content changed since the last pass,
// then recomputes counters from the ledger. A file that fails to parse or
// validate is logged and skipped.
func (im *Importer) Sync(ctx context.Context) (Report, error) {
	im.mu.Lock()
	defer im.mu.Unlock()

	var rep Report
	err := filepath.WalkDir(im.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isCardFile(path) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rep.Files++

		rel, relErr := filepath.Rel(im.dir, path)
		if relErr != nil {
			rel = path
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			im.logger.Warn("import: read failed", slog.String("path", rel), slog.String("error", readErr.Error()))
			rep.Failed++
			return nil
		}
		cs := checksum(data)
		if im.checksums[rel] == cs {
			rep.Unchanged++
			return nil
		}

		n, ok := im.importFile(ctx, rel, data)
		rep.Cards += n
		if !ok {
			rep.Failed++
			return nil
		}
		im.checksums[rel] = cs
		return nil
	})
	if err != nil {
		return rep, err
	}

	if rep.Cards == 0 {
		return rep, nil
	}
	repaired, err := im.svc.RecomputeCounters(ctx)
	if err != nil {
		return rep, err
	}
	rep.Repaired = repaired
	im.logger.Info("import: done",
		slog.Int("files", rep.Files),
		slog.Int("unchanged", rep.Unchanged),
		slog.Int("cards", rep.Cards),
		slog.Int("failed", rep.Failed),
		slog.Int("repaired", len(repaired)))
	return rep, nil
}

// importFile imports the cards in one file. ok is false if any card in the
// file failed, so the file is retried on the next pass.
func (im *Importer) importFile(ctx context.Context, rel string, data []byte) (imported int, ok bool) {
	cards, err := Decode(data)
	if err != nil {
		im.logger.Warn("import: decode failed", slog.String("path", rel), slog.String("error", err.Error()))
		return 0, false
	}
	ok = true
	for _, in := range cards {
		card, err := im.svc.ImportCard(ctx, in)
		if err != nil {
			im.logger.Warn("import: card rejected",
				slog.String("path", rel),
				slog.String("name", in.Name),
				slog.String("error", err.Error()))
			ok = false
			continue
		}
		imported++
		im.logger.Debug("import: card upserted", slog.String("path", rel), slog.Int64("card_id", card.ID))
	}
	return imported, ok
}
