// Package metrics defines the Prometheus counters for marketplace activity.
// Metrics register with the default registry through promauto on import.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "auction"

// BidsTotal counts bid attempts.
// Label:
//   - result: "accepted" or the rejection reason (e.g. "too_low", "self_bid", "inactive")
var BidsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bids_total",
		Help:      "Total number of bid attempts, by result.",
	},
	[]string{"result"},
)

// SettlementsTotal counts settled auctions.
// Label:
//   - outcome: "sold", "unsold_no_bids" or "unsold_reserve_not_met"
var SettlementsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "settlements_total",
		Help:      "Total number of settled auctions, by outcome.",
	},
	[]string{"outcome"},
)

// UsersRegisteredTotal counts successful registrations.
var UsersRegisteredTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "users_registered_total",
		Help:      "Total number of registered users.",
	},
)

// AuctionsCreatedTotal counts auctions put up for sale.
var AuctionsCreatedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auctions_created_total",
		Help:      "Total number of auctions created.",
	},
)

// HTTPRequestsTotal counts served HTTP requests.
// Labels:
//   - method: HTTP method
//   - route: matched route template, "unmatched" when no route was found
//   - status: response status code
var HTTPRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests, by method, route and status.",
	},
	[]string{"method", "route", "status"},
)
