package scoring

import (
	"math"
	"strings"

	"github.com/aiki-no/aiki-cli/internal/model"
)

// DefaultConversionRate applies to industries missing from the rate table.
const DefaultConversionRate = 20

// MarketStats summarises the market behind a lead list.
type MarketStats struct {
	TotalPotentialMillions float64 `json:"total_potential_millions"` // sum of 10% of revenue, one decimal
	AvgDealSizeThousands   int     `json:"avg_deal_size_thousands"`  // 5% of mean revenue
	ConversionRate         int     `json:"conversion_rate"`          // percent
}

// ComputeMarketStats aggregates leads. The conversion rate is looked up by
// industry case-insensitively, falling back to defaultRate (or 20 when
// defaultRate is not positive). An empty lead list yields zero potential and
// deal size.
func ComputeMarketStats(leads []model.Lead, industry string, rates map[string]int, defaultRate int) MarketStats {
	if defaultRate <= 0 {
		defaultRate = DefaultConversionRate
	}

	var total, revenue float64
	for _, l := range leads {
		total += l.RevenueMillions * 0.1
		revenue += l.RevenueMillions
	}

	stats := MarketStats{
		TotalPotentialMillions: math.Round(total*10) / 10,
		ConversionRate:         defaultRate,
	}
	if len(leads) > 0 {
		stats.AvgDealSizeThousands = int(math.Round(revenue / float64(len(leads)) * 50))
	}

	key := strings.ToLower(strings.TrimSpace(industry))
	for k, v := range rates {
		if strings.ToLower(k) == key {
			stats.ConversionRate = v
			break
		}
	}
	return stats
}
