package service

import (
	"strings"

	"github.com/yonghanchen/predictbot/internal/domain"
	"github.com/yonghanchen/predictbot/internal/platform/polymarket"
)

// MatchOutcomeTokens maps a venue's outcome tokens onto the yes/no sides of
// a binary market. Labels are matched case-insensitively by substring:
// "yes" or "true" selects the yes side, "no" or "false" the no side. The
// first match per side wins and unmatched tokens are ignored.
//
// The heuristic is deliberately kept byte-compatible with the upstream
// catalog it was built against, fragile as substring matching on free-text
// labels is. Markets with more than two outcomes are not supported: at most
// one token lands on each side and the rest are dropped.
func MatchOutcomeTokens(tokens []polymarket.ClobToken) (yes, no *polymarket.ClobToken) {
	for i := range tokens {
		outcome := strings.ToLower(tokens[i].Outcome)
		switch {
		case yes == nil && (strings.Contains(outcome, "yes") || strings.Contains(outcome, "true")):
			yes = &tokens[i]
		case no == nil && (strings.Contains(outcome, "no") || strings.Contains(outcome, "false")):
			no = &tokens[i]
		}
	}
	return yes, no
}

// FilterValid returns only the markets that satisfy the tradability
// predicate: both token IDs resolved and both prices strictly positive.
func FilterValid(markets []domain.Market) []domain.Market {
	out := make([]domain.Market, 0, len(markets))
	for _, m := range markets {
		if m.Valid() {
			out = append(out, m)
		}
	}
	return out
}
