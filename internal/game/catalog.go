package game

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/whalebounty/whalebounty/internal/domain"
	"github.com/whalebounty/whalebounty/internal/random"
)

//go:embed cards.yaml
var defaultCardsYAML []byte

// catalogFile is the top-level YAML structure of a card catalog.
type catalogFile struct {
	Cards []domain.Card `yaml:"cards"`
}

// Catalog is the immutable list of cards that hands are drawn from.
type Catalog struct {
	cards []domain.Card
	byID  map[string]domain.Card
}

// DefaultCatalog returns the built-in eight-card catalog.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCardsYAML)
	if err != nil {
		panic(fmt.Sprintf("game: embedded catalog: %v", err))
	}
	return c
}

// LoadCatalog reads a YAML catalog from path. An empty path yields the
// built-in catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("game: read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog parses and validates a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("game: parse catalog YAML: %w", err)
	}
	return NewCatalog(f.Cards)
}

// NewCatalog validates cards and builds a Catalog. A catalog needs at least
// InitialHandSize cards so that a fresh deal never repeats a card.
func NewCatalog(cards []domain.Card) (*Catalog, error) {
	if len(cards) < InitialHandSize {
		return nil, fmt.Errorf("game: catalog needs at least %d cards, got %d", InitialHandSize, len(cards))
	}
	byID := make(map[string]domain.Card, len(cards))
	for _, c := range cards {
		switch {
		case c.ID == "":
			return nil, fmt.Errorf("game: card %q has no id", c.Name)
		case !c.Type.Valid():
			return nil, fmt.Errorf("game: card %s has unknown type %q", c.ID, c.Type)
		case c.Power <= 0 || c.Stability <= 0:
			return nil, fmt.Errorf("game: card %s needs positive power and stability", c.ID)
		}
		if _, dup := byID[c.ID]; dup {
			return nil, fmt.Errorf("game: duplicate card id %s", c.ID)
		}
		byID[c.ID] = c
	}
	return &Catalog{cards: append([]domain.Card(nil), cards...), byID: byID}, nil
}

// Cards returns a copy of every card in catalog order.
func (c *Catalog) Cards() []domain.Card {
	return append([]domain.Card(nil), c.cards...)
}

// Lookup returns the card with the given id.
func (c *Catalog) Lookup(id string) (domain.Card, bool) {
	card, ok := c.byID[id]
	return card, ok
}

// Draw shuffles a copy of the catalog and returns the first n cards, so a
// single draw never contains the same card twice.
func (c *Catalog) Draw(src random.Source, n int) []domain.Card {
	shuffled := c.Cards()
	random.Shuffle(src, len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	if n > len(shuffled) {
		n = len(shuffled)
	}
	return shuffled[:n]
}
