package services

import (
	"sort"

	"sealed-auction/internal/domain"
)

// settle computes the second-price outcome for a closed bid set.
//
// The highest bid wins but pays the runner-up's amount, floored at the
// reserve price. No bids, or a highest bid under the reserve, means no
// winner. The result is deterministic for any bid set: ties on amount
// go to the earlier bid, then to the lexicographically smaller bidder.
func settle(bids map[string]domain.Bid, reservePrice int64) domain.Outcome {
	ranked := rankBids(bids)
	if len(ranked) == 0 || ranked[0].Amount < reservePrice {
		return domain.Outcome{}
	}

	price := reservePrice
	if len(ranked) > 1 && ranked[1].Amount > reservePrice {
		price = ranked[1].Amount
	}

	return domain.Outcome{
		Winner: ranked[0].Bidder,
		Price:  price,
	}
}

// rankBids imposes the total order used for winner selection:
// amount descending, then submission time ascending, then bidder.
func rankBids(bids map[string]domain.Bid) []domain.Bid {
	ranked := make([]domain.Bid, 0, len(bids))
	for _, bid := range bids {
		ranked = append(ranked, bid)
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Amount != ranked[j].Amount {
			return ranked[i].Amount > ranked[j].Amount
		}
		if !ranked[i].PlacedAt.Equal(ranked[j].PlacedAt) {
			return ranked[i].PlacedAt.Before(ranked[j].PlacedAt)
		}
		return ranked[i].Bidder < ranked[j].Bidder
	})

	return ranked
}
