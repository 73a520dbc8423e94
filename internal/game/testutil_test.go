package game

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/whalebounty/whalebounty/internal/domain"
)

// flatCatalog builds a catalog whose cards all share the given stability and
// have powers 3, 5, 7, ... so damage is easy to predict.
func flatCatalog(t *testing.T, stability, n int) *Catalog {
	t.Helper()
	cards := make([]domain.Card, 0, n)
	for i := 0; i < n; i++ {
		cards = append(cards, domain.Card{
			ID:        fmt.Sprintf("c%d", i),
			Name:      fmt.Sprintf("Card %d", i),
			Symbol:    fmt.Sprintf("C%d", i),
			Type:      domain.CardTypeDeFi,
			Power:     3 + 2*i,
			Stability: stability,
		})
	}
	c, err := NewCatalog(cards)
	require.NoError(t, err)
	return c
}

func mustCard(t *testing.T, id string) domain.Card {
	t.Helper()
	c, ok := DefaultCatalog().Lookup(id)
	require.True(t, ok, "card %s missing from default catalog", id)
	return c
}
