package domain

import "time"

// BlacklistEntry excludes a wallet from alerts.
type BlacklistEntry struct {
	Chain     Chain // ChainAny applies to every chain
	Wallet    string
	Reason    string
	CreatedAt time.Time
}
