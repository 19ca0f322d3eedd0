// README: Commission computation; the provider share is rounded, the platform takes the remainder.
package ledger

import (
	"sort"

	"staybook/internal/types"
)

// Compute splits total at rate so that PlatformFee + ProviderAmount == total exactly.
func Compute(total types.Money, rate types.Rate) Split {
	provider := total.MulRate(types.FullRate - rate)
	return Split{
		Rate:           rate,
		PlatformFee:    total - provider,
		ProviderAmount: provider,
	}
}

// Summarize adds up frozen per-order amounts; nothing is recomputed from current rates.
func Summarize(entries []Entry) Summary {
	sum := Summary{ByProvider: []ProviderTotals{}}
	byProvider := make(map[types.ID]*ProviderTotals)
	for _, e := range entries {
		sum.Orders++
		sum.Gross += e.Total
		sum.PlatformFees += e.PlatformFee
		sum.ProviderPayouts += e.ProviderAmount

		p, ok := byProvider[e.ProviderID]
		if !ok {
			p = &ProviderTotals{ProviderID: e.ProviderID, ProviderName: e.ProviderName}
			byProvider[e.ProviderID] = p
		}
		p.Orders++
		p.Gross += e.Total
		p.PlatformFees += e.PlatformFee
		p.ProviderPayouts += e.ProviderAmount
	}
	for _, p := range byProvider {
		sum.ByProvider = append(sum.ByProvider, *p)
	}
	sort.Slice(sum.ByProvider, func(i, j int) bool {
		if sum.ByProvider[i].Gross != sum.ByProvider[j].Gross {
			return sum.ByProvider[i].Gross > sum.ByProvider[j].Gross
		}
		return sum.ByProvider[i].ProviderID < sum.ByProvider[j].ProviderID
	})
	return sum
}
