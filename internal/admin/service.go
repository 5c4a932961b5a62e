// Package admin implements operator actions: tracked token management,
// the wallet blacklist and manual alert resends.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"safeguard-bot/internal/alert"
	"safeguard-bot/internal/domain"
	"safeguard-bot/internal/solana"
	"safeguard-bot/internal/storage"
)

// Service errors.
var (
	// ErrAlreadySent is returned when resending an alert that was delivered.
	ErrAlreadySent = errors.New("alert already sent")

	// ErrSuppressed is returned when a resend is refused by the wallet filter.
	ErrSuppressed = errors.New("alert suppressed")
)

// WalletFilter answers and invalidates blacklist lookups. *mev.Filter satisfies it.
type WalletFilter interface {
	IsBlacklisted(ctx context.Context, wallet string, chain domain.Chain) (bool, error)
	Invalidate(ctx context.Context, wallet string, chain domain.Chain)
}

// Gate decides alert eligibility. *alert.Gate satisfies it.
type Gate interface {
	ShouldAlert(ctx context.Context, token *domain.TrackedToken, tx *domain.Transaction) alert.GateDecision
}

// Dispatcher delivers alerts. *alert.Dispatcher satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, token *domain.TrackedToken, tx *domain.Transaction, decision alert.GateDecision) (alert.Outcome, error)
}

// ServiceOptions configures a Service.
type ServiceOptions struct {
	Tokens       storage.TokenStore
	Transactions storage.TransactionStore
	Blacklist    storage.BlacklistStore
	Filter       WalletFilter
	Gate         Gate       // required for ResendAlert
	Dispatcher   Dispatcher // required for ResendAlert
	Logger       *zerolog.Logger
}

// Service is the admin entry point used by the CLI and HTTP API.
type Service struct {
	tokens     storage.TokenStore
	txs        storage.TransactionStore
	blacklist  storage.BlacklistStore
	filter     WalletFilter
	gate       Gate
	dispatcher Dispatcher
	logger     zerolog.Logger
}

// NewService creates a Service.
func NewService(opts ServiceOptions) *Service {
	s := &Service{
		tokens:     opts.Tokens,
		txs:        opts.Transactions,
		blacklist:  opts.Blacklist,
		filter:     opts.Filter,
		gate:       opts.Gate,
		dispatcher: opts.Dispatcher,
		logger:     zerolog.Nop(),
	}
	if opts.Logger != nil {
		s.logger = opts.Logger.With().Str("component", "admin").Logger()
	}
	return s
}

// TokenRequest holds the settings of a new tracked token.
type TokenRequest struct {
	Chain             domain.Chain       `json:"chain"`
	Address           string             `json:"address"`
	Symbol            string             `json:"symbol"`
	PoolAddress       string             `json:"pool_address"` // required for EVM chains
	ChannelID         int64              `json:"channel_id"`
	MinAmount         decimal.Decimal    `json:"min_amount"`
	MinAmountUSD      decimal.Decimal    `json:"min_amount_usd"`
	WhaleThresholdUSD decimal.Decimal    `json:"whale_threshold_usd"`
	EmojiTiers        []domain.EmojiTier `json:"emoji_tiers"`
	Buttons           []domain.Button    `json:"buttons"`
	Media             *domain.Media      `json:"media"`
	MEVFilter         bool               `json:"mev_filter"`
}

// AddTrackedToken validates req and starts tracking the token.
func (s *Service) AddTrackedToken(ctx context.Context, req TokenRequest) (*domain.TrackedToken, error) {
	token, err := req.validate()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}
	if err := s.tokens.Insert(ctx, token); err != nil {
		return nil, fmt.Errorf("insert token: %w", err)
	}
	s.logger.Info().
		Int64("token", token.ID).
		Str("chain", string(token.Chain)).
		Str("address", token.Address).
		Int64("channel", token.ChannelID).
		Msg("tracked token added")
	return token, nil
}

// SeedTokens adds every token of a JSON array of TokenRequest objects.
// mev_filter defaults to true when omitted. Tokens already tracked are
// skipped. Returns the number of tokens added.
func (s *Service) SeedTokens(ctx context.Context, r io.Reader) (int, error) {
	var raws []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raws); err != nil {
		return 0, fmt.Errorf("%w: decode token seed: %v", storage.ErrInvalidInput, err)
	}

	added := 0
	for i, raw := range raws {
		req := TokenRequest{MEVFilter: true}
		if err := json.Unmarshal(raw, &req); err != nil {
			return added, fmt.Errorf("%w: token seed %d: %v", storage.ErrInvalidInput, i, err)
		}
		if _, err := s.AddTrackedToken(ctx, req); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				s.logger.Debug().Str("chain", string(req.Chain)).Str("address", req.Address).Msg("seed token already tracked")
				continue
			}
			return added, fmt.Errorf("token seed %d: %w", i, err)
		}
		added++
	}
	return added, nil
}

// DeactivateTrackedToken stops tracking a token.
func (s *Service) DeactivateTrackedToken(ctx context.Context, id int64) error {
	if err := s.tokens.Deactivate(ctx, id); err != nil {
		return fmt.Errorf("deactivate token %d: %w", id, err)
	}
	s.logger.Info().Int64("token", id).Msg("tracked token deactivated")
	return nil
}

// ListActiveTokens returns active tokens, optionally restricted to chain.
func (s *Service) ListActiveTokens(ctx context.Context, chain domain.Chain) ([]*domain.TrackedToken, error) {
	if chain != "" && !chain.IsValid() {
		return nil, fmt.Errorf("%w: unsupported chain %q", storage.ErrInvalidInput, chain)
	}
	return s.tokens.ListActive(ctx, chain)
}

// AddBlacklist excludes wallet on chain (or on every chain with ChainAny).
func (s *Service) AddBlacklist(ctx context.Context, chain domain.Chain, wallet, reason string) error {
	wallet = strings.TrimSpace(wallet)
	if err := validateWallet(chain, wallet); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}
	entry := &domain.BlacklistEntry{Chain: chain, Wallet: wallet, Reason: reason}
	if err := s.blacklist.Add(ctx, entry); err != nil {
		return fmt.Errorf("add blacklist entry: %w", err)
	}
	s.invalidate(ctx, wallet, chain)
	s.logger.Info().Str("chain", string(chain)).Str("wallet", wallet).Msg("wallet blacklisted")
	return nil
}

// RemoveBlacklist removes a blacklist entry.
func (s *Service) RemoveBlacklist(ctx context.Context, chain domain.Chain, wallet string) error {
	wallet = strings.TrimSpace(wallet)
	if err := s.blacklist.Remove(ctx, chain, wallet); err != nil {
		return fmt.Errorf("remove blacklist entry: %w", err)
	}
	s.invalidate(ctx, wallet, chain)
	s.logger.Info().Str("chain", string(chain)).Str("wallet", wallet).Msg("wallet removed from blacklist")
	return nil
}

// ListBlacklist returns every blacklist entry.
func (s *Service) ListBlacklist(ctx context.Context) ([]*domain.BlacklistEntry, error) {
	return s.blacklist.List(ctx)
}

// IsBlacklisted reports whether wallet is excluded on chain.
func (s *Service) IsBlacklisted(ctx context.Context, wallet string, chain domain.Chain) (bool, error) {
	if !chain.IsValid() {
		return false, fmt.Errorf("%w: unsupported chain %q", storage.ErrInvalidInput, chain)
	}
	if s.filter != nil {
		return s.filter.IsBlacklisted(ctx, wallet, chain)
	}
	return s.blacklist.Contains(ctx, chain, wallet)
}

// ResendAlert re-dispatches the alert of a recorded transaction whose alert
// was never delivered. Thresholds and direction policy are overridden; the
// wallet filter is not.
func (s *Service) ResendAlert(ctx context.Context, txID int64) (alert.Outcome, error) {
	tx, err := s.txs.GetByID(ctx, txID)
	if err != nil {
		return alert.OutcomeFailed, fmt.Errorf("get transaction %d: %w", txID, err)
	}
	if tx.AlertSent {
		return alert.OutcomeSkipped, ErrAlreadySent
	}
	token, err := s.tokens.GetByID(ctx, tx.TokenID)
	if err != nil {
		return alert.OutcomeFailed, fmt.Errorf("get token %d: %w", tx.TokenID, err)
	}

	decision := s.gate.ShouldAlert(ctx, token, tx)
	if !decision.Emit {
		switch decision.Reason {
		case alert.ReasonBlacklisted, alert.ReasonFilterError:
			return alert.OutcomeSkipped, fmt.Errorf("%w: %s", ErrSuppressed, decision.Reason)
		}
		decision.Emit = true
		decision.Reason = ""
	}

	outcome, err := s.dispatcher.Dispatch(ctx, token, tx, decision)
	s.logger.Info().Int64("tx", txID).Str("outcome", string(outcome)).Msg("alert resend")
	return outcome, err
}

func (s *Service) invalidate(ctx context.Context, wallet string, chain domain.Chain) {
	if s.filter != nil {
		s.filter.Invalidate(ctx, wallet, chain)
	}
}

func (r TokenRequest) validate() (*domain.TrackedToken, error) {
	if !r.Chain.IsValid() {
		return nil, fmt.Errorf("unsupported chain %q", r.Chain)
	}
	address := strings.TrimSpace(r.Address)
	pool := strings.TrimSpace(r.PoolAddress)

	switch r.Chain.Family() {
	case domain.FamilySolana:
		if !solana.IsValidAddress(address) {
			return nil, fmt.Errorf("invalid solana mint %q", address)
		}
		if pool != "" && !solana.IsValidAddress(pool) {
			return nil, fmt.Errorf("invalid solana pool %q", pool)
		}
	case domain.FamilyEVM:
		if !common.IsHexAddress(address) {
			return nil, fmt.Errorf("invalid token address %q", address)
		}
		if !common.IsHexAddress(pool) {
			return nil, fmt.Errorf("pool address required for %s", r.Chain)
		}
		address = common.HexToAddress(address).Hex()
		pool = common.HexToAddress(pool).Hex()
	}

	if r.ChannelID == 0 {
		return nil, errors.New("channel id required")
	}
	for name, v := range map[string]decimal.Decimal{
		"min amount":      r.MinAmount,
		"min amount usd":  r.MinAmountUSD,
		"whale threshold": r.WhaleThresholdUSD,
	} {
		if v.IsNegative() {
			return nil, fmt.Errorf("%s must not be negative", name)
		}
	}
	if len(r.Buttons) > domain.MaxButtons {
		return nil, fmt.Errorf("at most %d buttons", domain.MaxButtons)
	}
	for _, b := range r.Buttons {
		if strings.TrimSpace(b.Text) == "" || !isHTTPURL(b.URL) {
			return nil, fmt.Errorf("invalid button %q", b.Text)
		}
	}
	if r.Media != nil {
		switch r.Media.Type {
		case domain.MediaPhoto, domain.MediaVideo, domain.MediaAnimation:
		default:
			return nil, fmt.Errorf("unsupported media type %q", r.Media.Type)
		}
		if strings.TrimSpace(r.Media.URL) == "" {
			return nil, errors.New("media url required")
		}
	}

	return &domain.TrackedToken{
		Chain:             r.Chain,
		Address:           address,
		PoolAddress:       pool,
		Symbol:            strings.TrimSpace(r.Symbol),
		ChannelID:         r.ChannelID,
		MinAmount:         r.MinAmount,
		MinAmountUSD:      r.MinAmountUSD,
		WhaleThresholdUSD: r.WhaleThresholdUSD,
		EmojiTiers:        r.EmojiTiers,
		Buttons:           r.Buttons,
		Media:             r.Media,
		MEVFilter:         r.MEVFilter,
	}, nil
}

func validateWallet(chain domain.Chain, wallet string) error {
	switch {
	case wallet == "":
		return errors.New("wallet required")
	case chain == domain.ChainAny:
		return nil
	case chain == domain.ChainSolana:
		if !solana.IsValidAddress(wallet) {
			return fmt.Errorf("invalid solana wallet %q", wallet)
		}
	case chain.IsValid():
		if !common.IsHexAddress(wallet) {
			return fmt.Errorf("invalid wallet %q", wallet)
		}
	default:
		return fmt.Errorf("unsupported chain %q", chain)
	}
	return nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "https" || u.Scheme == "http") && u.Host != ""
}
