package strategy

import (
	"fmt"
	"strings"
)

// AllNames lists the full catalogue in canonical order.
var AllNames = []string{
	NameCopyTrade,
	NameSmartMoney,
	NameVolumeBreakout,
	NameMemecoin,
	NameArbitrage,
	NameEarlyGem,
	NameAdaptive,
}

// standardSet builds the six concrete strategies adaptive delegates to.
func standardSet(p Params) []Strategy {
	return []Strategy{
		NewCopyTradeStrategy(p),
		NewSmartMoneyStrategy(p),
		NewVolumeBreakoutStrategy(p),
		NewMemecoinStrategy(p),
		NewArbitrageStrategy(p),
		NewEarlyGemStrategy(p),
	}
}

// FromNames builds the enabled strategy set from canonical names. Names
// are trimmed and deduplicated; an unknown name is an error. Adaptive
// always delegates to the full standard set, independent of which other
// strategies are enabled.
func FromNames(names []string, p Params) ([]Strategy, error) {
	var out []Strategy
	seen := make(map[string]bool, len(names))
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		switch name {
		case NameCopyTrade:
			out = append(out, NewCopyTradeStrategy(p))
		case NameSmartMoney:
			out = append(out, NewSmartMoneyStrategy(p))
		case NameVolumeBreakout:
			out = append(out, NewVolumeBreakoutStrategy(p))
		case NameMemecoin:
			out = append(out, NewMemecoinStrategy(p))
		case NameArbitrage:
			out = append(out, NewArbitrageStrategy(p))
		case NameEarlyGem:
			out = append(out, NewEarlyGemStrategy(p))
		case NameAdaptive:
			out = append(out, NewAdaptiveStrategy(p, standardSet(p)))
		default:
			return nil, fmt.Errorf("unknown strategy %q", name)
		}
	}
	return out, nil
}
