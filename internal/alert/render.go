package alert

import (
	"fmt"
	"html"
	"strings"

	"github.com/shopspring/decimal"

	"safeguard-bot/internal/domain"
	"safeguard-bot/internal/notify"
)

type explorer struct {
	tx      string
	address string
}

var explorers = map[domain.Chain]explorer{
	domain.ChainSolana:   {tx: "https://solscan.io/tx/%s", address: "https://solscan.io/account/%s"},
	domain.ChainEthereum: {tx: "https://etherscan.io/tx/%s", address: "https://etherscan.io/address/%s"},
	domain.ChainBSC:      {tx: "https://bscscan.com/tx/%s", address: "https://bscscan.com/address/%s"},
	domain.ChainBase:     {tx: "https://basescan.org/tx/%s", address: "https://basescan.org/address/%s"},
}

// TxURL returns the block explorer link for a transaction.
func TxURL(chain domain.Chain, hash string) string {
	return fmt.Sprintf(explorers[chain].tx, hash)
}

// AddressURL returns the block explorer link for a wallet.
func AddressURL(chain domain.Chain, addr string) string {
	return fmt.Sprintf(explorers[chain].address, addr)
}

// Render formats an alert for token's channel. It has no side effects.
func Render(token *domain.TrackedToken, tx *domain.Transaction, d GateDecision) notify.Message {
	symbol := html.EscapeString(token.Symbol)
	if symbol == "" {
		symbol = shortAddress(token.Address)
	}
	native := tx.Chain.NativeSymbol()

	var b strings.Builder
	if d.Emoji != "" {
		b.WriteString(d.Emoji)
		b.WriteString("\n\n")
	}
	if d.IsWhale {
		b.WriteString("🐋 <b>WHALE ALERT</b> 🐋\n")
	}

	usd := ""
	if tx.USDValue.Valid {
		usd = fmt.Sprintf(" ($%s)", FormatUSD(tx.USDValue.Decimal))
	}

	if tx.Direction == domain.DirectionSell {
		fmt.Fprintf(&b, "<b>%s Sell!</b>\n\n", symbol)
		fmt.Fprintf(&b, "🔻 Sold: %s %s\n", FormatAmount(tx.TokenAmount, 4), symbol)
		fmt.Fprintf(&b, "💰 Got: %s %s%s\n", FormatAmount(tx.NativeAmount, 4), native, usd)
	} else {
		fmt.Fprintf(&b, "<b>%s Buy!</b>\n\n", symbol)
		fmt.Fprintf(&b, "💰 Spent: %s %s%s\n", FormatAmount(tx.NativeAmount, 4), native, usd)
		fmt.Fprintf(&b, "🪙 Got: %s %s\n", FormatAmount(tx.TokenAmount, 4), symbol)
	}

	fmt.Fprintf(&b, "👤 <a href=\"%s\">%s</a> | <a href=\"%s\">Txn</a>",
		html.EscapeString(AddressURL(tx.Chain, tx.Wallet)),
		html.EscapeString(shortAddress(tx.Wallet)),
		html.EscapeString(TxURL(tx.Chain, tx.TxHash)))

	msg := notify.Message{
		ChatID: token.ChannelID,
		Text:   b.String(),
	}
	if token.Media != nil && token.Media.URL != "" {
		m := *token.Media
		msg.Media = &m
	}
	if n := len(token.Buttons); n > 0 {
		msg.Buttons = append([]domain.Button(nil), token.Buttons[:min(n, domain.MaxButtons)]...)
	}
	return msg
}

func shortAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:4] + "…" + addr[len(addr)-4:]
}

// FormatAmount rounds d to places decimals, trims trailing zeros and groups
// the integer part with commas.
func FormatAmount(d decimal.Decimal, places int32) string {
	s := d.StringFixed(places)
	if places > 0 {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	return groupThousands(s)
}

// FormatUSD formats d with two decimals and grouped thousands.
func FormatUSD(d decimal.Decimal) string {
	return groupThousands(d.StringFixed(2))
}

func groupThousands(s string) string {
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac, hasFrac := strings.Cut(s, ".")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}
