package importer

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/starford/tally/internal/models"
)

type cardList struct {
	Cards []models.NewCard `yaml:"cards"`
}

// Decode parses a card file. A file holds either one card mapping or a
// list of cards under a top-level "cards" key.
func Decode(data []byte) ([]models.NewCard, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var probe map[string]yaml.Node
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("importer: parse yaml: %w", err)
	}

	if _, ok := probe["cards"]; ok {
		var list cardList
		if err := yaml.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("importer: parse card list: %w", err)
		}
		return list.Cards, nil
	}

	var card models.NewCard
	if err := yaml.Unmarshal(data, &card); err != nil {
		return nil, fmt.Errorf("importer: parse card: %w", err)
	}
	return []models.NewCard{card}, nil
}

// checksum returns the hex-encoded SHA-256 digest of data.
func checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
