package domain

// CardType is the closed set of card categories.
type CardType string

const (
	CardTypeBlueChip   CardType = "BLUE_CHIP"
	CardTypeLayer1     CardType = "LAYER_1"
	CardTypeMeme       CardType = "MEME"
	CardTypeStablecoin CardType = "STABLECOIN"
	CardTypeDeFi       CardType = "DEFI"
)

// Valid reports whether t is one of the known card categories.
func (t CardType) Valid() bool {
	switch t {
	case CardTypeBlueChip, CardTypeLayer1, CardTypeMeme, CardTypeStablecoin, CardTypeDeFi:
		return true
	default:
		return false
	}
}

// Card is a playable crypto asset. Cards are immutable once defined and are
// copied by value into hands.
type Card struct {
	ID         string   `json:"id" yaml:"id"`
	Name       string   `json:"name" yaml:"name"`
	Symbol     string   `json:"symbol" yaml:"symbol"`
	Type       CardType `json:"type" yaml:"type"`
	Power      int      `json:"power" yaml:"power"`         // pump potential
	Stability  int      `json:"stability" yaml:"stability"` // resilience against dumps
	FlavorText string   `json:"flavorText" yaml:"flavor_text"`
	Color      string   `json:"color" yaml:"color"`
}
