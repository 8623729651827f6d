package auction

import (
	"sort"

	"auction-marketplace/internal/models"
)

// outranks reports whether x ranks above y: higher amount first, then the
// earlier timestamp, then the earlier acceptance.
func outranks(x, y models.Bid) bool {
	if c := x.Amount.Cmp(y.Amount); c != 0 {
		return c > 0
	}
	if !x.CreatedAt.Equal(y.CreatedAt) {
		return x.CreatedAt.Before(y.CreatedAt)
	}
	return x.Seq < y.Seq
}

// insertRanked keeps a.ranked sorted worst first. A new top bid is the
// common case and lands at the end without shifting.
func (a *Auction) insertRanked(bid models.Bid) {
	n := len(a.ranked)
	if n == 0 || outranks(bid, a.ranked[n-1]) {
		a.ranked = append(a.ranked, bid)
		return
	}

	i := sort.Search(n, func(i int) bool { return outranks(a.ranked[i], bid) })
	a.ranked = append(a.ranked, models.Bid{})
	copy(a.ranked[i+1:], a.ranked[i:])
	a.ranked[i] = bid
}
