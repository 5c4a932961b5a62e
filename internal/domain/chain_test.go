package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChain(t *testing.T) {
	c, err := ParseChain(" BSC ")
	require.NoError(t, err)
	assert.Equal(t, ChainBSC, c)
	assert.Equal(t, FamilyEVM, c.Family())
	assert.Equal(t, "BNB", c.NativeSymbol())

	_, err = ParseChain("tron")
	assert.Error(t, err)

	_, err = ParseChain("*")
	assert.Error(t, err, "wildcard is not a trackable chain")
}

func TestChain_Native(t *testing.T) {
	assert.Equal(t, FamilySolana, ChainSolana.Family())
	assert.Equal(t, "SOL", ChainSolana.NativeSymbol())
	assert.Equal(t, int32(9), ChainSolana.NativeDecimals())
	assert.Equal(t, "ETH", ChainBase.NativeSymbol())
	assert.Equal(t, int32(18), ChainEthereum.NativeDecimals())
}

func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t, "0xabcdef", NormalizeAddress(ChainEthereum, "0xAbCdEf"))
	assert.Equal(t, "So1AbC", NormalizeAddress(ChainSolana, " So1AbC "))
}

func TestEmojiTier_Contains(t *testing.T) {
	tier := EmojiTier{MinUSD: decimal.NewFromInt(100), MaxUSD: decimal.NewFromInt(500), Emoji: "x"}
	assert.False(t, tier.Contains(decimal.NewFromInt(99)))
	assert.True(t, tier.Contains(decimal.NewFromInt(100)))
	assert.True(t, tier.Contains(decimal.RequireFromString("499.99")))
	assert.False(t, tier.Contains(decimal.NewFromInt(500)))

	open := EmojiTier{MinUSD: decimal.NewFromInt(500), Emoji: "y"}
	assert.True(t, open.Contains(decimal.NewFromInt(1_000_000)))
}

func TestTrackedToken_Clone(t *testing.T) {
	orig := &TrackedToken{
		ID:      1,
		Buttons: []Button{{Text: "Chart", URL: "https://example.com"}},
		Media:   &Media{Type: MediaPhoto, URL: "https://example.com/a.png"},
	}
	c := orig.Clone()
	c.Buttons[0].Text = "changed"
	c.Media.URL = "changed"

	assert.Equal(t, "Chart", orig.Buttons[0].Text)
	assert.Equal(t, "https://example.com/a.png", orig.Media.URL)
}

func TestDayOf(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	ts := time.Date(2024, 3, 2, 1, 30, 0, 0, loc) // 2024-03-01 22:30 UTC
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), DayOf(ts))
}
