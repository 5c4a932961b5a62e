package alert

import (
	"context"

	"github.com/rs/zerolog"

	"safeguard-bot/internal/domain"
)

// Gate skip reasons.
const (
	ReasonBlacklisted      = "wallet blacklisted"
	ReasonFilterError      = "wallet filter unavailable"
	ReasonDirection        = "direction not alerted"
	ReasonBelowThreshold   = "below threshold"
	ReasonNoThresholdsSkip = "no thresholds configured"
)

// WalletFilter reports blacklisted wallets. *mev.Filter satisfies it.
type WalletFilter interface {
	IsBlacklisted(ctx context.Context, wallet string, chain domain.Chain) (bool, error)
}

// GateDecision is the outcome of ShouldAlert.
type GateDecision struct {
	Emit    bool
	Emoji   string
	IsWhale bool
	Reason  string // set when Emit is false
}

// GateOptions configures a Gate.
type GateOptions struct {
	Policy Policy
	Filter WalletFilter // optional
	Logger *zerolog.Logger
}

// Gate applies the policy table and per-token thresholds to a transaction.
type Gate struct {
	policy Policy
	filter WalletFilter
	logger zerolog.Logger
}

// NewGate creates a Gate.
func NewGate(opts GateOptions) *Gate {
	g := &Gate{policy: opts.Policy, filter: opts.Filter, logger: zerolog.Nop()}
	if opts.Logger != nil {
		g.logger = opts.Logger.With().Str("component", "gate").Logger()
	}
	return g
}

// Policy returns the gate's policy.
func (g *Gate) Policy() Policy { return g.policy }

// ShouldAlert decides whether tx is alerted for token. Whale flag and emoji
// are computed for every decision.
func (g *Gate) ShouldAlert(ctx context.Context, token *domain.TrackedToken, tx *domain.Transaction) GateDecision {
	d := GateDecision{
		Emoji:   SelectEmoji(token.EmojiTiers, tx.USDValue),
		IsWhale: token.WhaleThresholdUSD.IsPositive() && tx.USDValue.Valid && tx.USDValue.Decimal.GreaterThanOrEqual(token.WhaleThresholdUSD),
	}

	if token.MEVFilter && g.filter != nil {
		hit, err := g.filter.IsBlacklisted(ctx, tx.Wallet, tx.Chain)
		if err != nil {
			g.logger.Warn().Err(err).Str("chain", string(tx.Chain)).Str("tx", tx.TxHash).Msg("wallet filter lookup failed, suppressing alert")
			d.Reason = ReasonFilterError
			return d
		}
		if hit {
			d.Reason = ReasonBlacklisted
			return d
		}
	}

	if !g.policy.allows(tx.Direction) {
		d.Reason = ReasonDirection
		return d
	}

	hasToken := token.MinAmount.IsPositive()
	hasUSD := token.MinAmountUSD.IsPositive()
	meetsToken := hasToken && tx.TokenAmount.GreaterThanOrEqual(token.MinAmount)
	meetsUSD := hasUSD && tx.USDValue.Valid && tx.USDValue.Decimal.GreaterThanOrEqual(token.MinAmountUSD)

	switch {
	case meetsToken || meetsUSD:
		d.Emit = true
	case !hasToken && !hasUSD:
		d.Emit = g.policy.AlertAllWhenUnconfigured
		if !d.Emit {
			d.Reason = ReasonNoThresholdsSkip
		}
	default:
		d.Reason = ReasonBelowThreshold
	}
	return d
}
