// Package alert decides which recorded swaps become channel alerts, renders
// them, and dispatches them.
package alert

import (
	"github.com/shopspring/decimal"

	"safeguard-bot/internal/domain"
)

// Policy holds the global alerting switches applied before per-token
// thresholds.
type Policy struct {
	AlertBuys  bool
	AlertSells bool
	// AlertAllWhenUnconfigured emits every allowed swap for tokens that set
	// neither a token nor a USD minimum.
	AlertAllWhenUnconfigured bool
}

// DefaultPolicy alerts buys only, and every buy of unconfigured tokens.
func DefaultPolicy() Policy {
	return Policy{AlertBuys: true, AlertSells: false, AlertAllWhenUnconfigured: true}
}

// allows reports whether the direction is alertable at all.
func (p Policy) allows(d domain.Direction) bool {
	switch d {
	case domain.DirectionBuy:
		return p.AlertBuys
	case domain.DirectionSell:
		return p.AlertSells
	}
	return false
}

// DefaultEmojiTiers is used for tokens without their own tiers.
var DefaultEmojiTiers = []domain.EmojiTier{
	{MinUSD: decimal.Zero, MaxUSD: decimal.NewFromInt(100), Emoji: "🟢"},
	{MinUSD: decimal.NewFromInt(100), MaxUSD: decimal.NewFromInt(1000), Emoji: "🟢🟢"},
	{MinUSD: decimal.NewFromInt(1000), MaxUSD: decimal.NewFromInt(5000), Emoji: "🟢🟢🟢"},
	{MinUSD: decimal.NewFromInt(5000), MaxUSD: decimal.NewFromInt(20000), Emoji: "🟢🟢🟢🟢"},
	{MinUSD: decimal.NewFromInt(20000), MaxUSD: decimal.Zero, Emoji: "🐳🐳🐳"},
}

// SelectEmoji returns the emoji of the first token tier containing usd,
// falling back to DefaultEmojiTiers. Unknown USD maps to the first tier.
func SelectEmoji(tiers []domain.EmojiTier, usd decimal.NullDecimal) string {
	if !usd.Valid {
		if len(tiers) > 0 {
			return tiers[0].Emoji
		}
		return DefaultEmojiTiers[0].Emoji
	}
	for _, t := range tiers {
		if t.Contains(usd.Decimal) {
			return t.Emoji
		}
	}
	for _, t := range DefaultEmojiTiers {
		if t.Contains(usd.Decimal) {
			return t.Emoji
		}
	}
	return DefaultEmojiTiers[0].Emoji
}
