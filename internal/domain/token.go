package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaxButtons is the maximum number of custom URL buttons per tracked token.
const MaxButtons = 3

// TrackedToken is a (chain, address) pair watched on behalf of one channel.
// Corresponds to tracked_tokens table in PostgreSQL.
type TrackedToken struct {
	ID          int64
	Chain       Chain
	Address     string // mint (Solana) or contract (EVM)
	PoolAddress string // required for EVM, optional for Solana
	Symbol      string
	ChannelID   int64 // destination chat ID

	MinAmount         decimal.Decimal // token units, zero = unset
	MinAmountUSD      decimal.Decimal // zero = unset
	WhaleThresholdUSD decimal.Decimal // zero = no whale detection

	EmojiTiers []EmojiTier
	Buttons    []Button
	Media      *Media
	MEVFilter  bool

	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EmojiTier maps a USD range [MinUSD, MaxUSD) to an emoji string.
// A zero MaxUSD leaves the range open-ended.
type EmojiTier struct {
	MinUSD decimal.Decimal `json:"min_usd"`
	MaxUSD decimal.Decimal `json:"max_usd"`
	Emoji  string          `json:"emoji"`
}

// Contains reports whether usd falls inside the tier.
func (t EmojiTier) Contains(usd decimal.Decimal) bool {
	if usd.LessThan(t.MinUSD) {
		return false
	}
	return t.MaxUSD.IsZero() || usd.LessThan(t.MaxUSD)
}

// Button is an inline URL button attached to alerts.
type Button struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// MediaType is the kind of media attached to an alert.
type MediaType string

const (
	MediaPhoto     MediaType = "photo"
	MediaVideo     MediaType = "video"
	MediaAnimation MediaType = "animation"
)

// Media is an optional attachment sent with alerts.
type Media struct {
	Type MediaType `json:"type"`
	URL  string    `json:"url"` // URL or platform file ID
}

// Clone returns a deep copy of the token.
func (t *TrackedToken) Clone() *TrackedToken {
	if t == nil {
		return nil
	}
	c := *t
	if t.EmojiTiers != nil {
		c.EmojiTiers = append([]EmojiTier(nil), t.EmojiTiers...)
	}
	if t.Buttons != nil {
		c.Buttons = append([]Button(nil), t.Buttons...)
	}
	if t.Media != nil {
		m := *t.Media
		c.Media = &m
	}
	return &c
}
