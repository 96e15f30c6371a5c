package routing

import "github.com/prometheus/client_golang/prometheus"

// refreshDuration tracks how long each DHC refresh cycle takes end to
// end (across however many cooperative wakes it needed), the routing
// counterpart to the teacher's grpc-ecosystem/go-grpc-prometheus
// instrumentation habit.
var refreshDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
	Namespace: "lnroute",
	Subsystem: "routing",
	Name:      "dhc_refresh_duration_seconds",
	Help:      "Wall-clock time taken by a complete DHC refresh cycle.",
	Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
})

// diversityTreeDepth tracks how many ban-edges deep a successful
// diversity request had to descend before finding a budget-satisfying,
// non-duplicate route.
var diversityTreeDepth = prometheus.NewHistogram(prometheus.HistogramOpts{
	Namespace: "lnroute",
	Subsystem: "routing",
	Name:      "diversity_tree_depth",
	Help:      "Ban-chain depth of the edge that produced a diversity route.",
	Buckets:   prometheus.LinearBuckets(0, 1, 10),
})

func init() {
	prometheus.MustRegister(refreshDuration, diversityTreeDepth)
}
