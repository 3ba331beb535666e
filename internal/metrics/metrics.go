package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modgarage_orders_created_total",
		Help: "Total number of orders created at checkout.",
	})

	OrdersCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modgarage_orders_cancelled_total",
		Help: "Total number of orders cancelled.",
	})

	StageAdvancesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modgarage_stage_advances_total",
		Help: "Total number of tracking stage advances applied by the refresh scheduler.",
	})

	RefreshPassesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modgarage_refresh_passes_total",
		Help: "Total number of stage refresh passes executed.",
	})

	AdminDeletesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modgarage_admin_deletes_total",
		Help: "Total number of confirmed admin deletions, by collection.",
	},
		[]string{"collection"},
	)

	SyncPublishesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modgarage_sync_publishes_total",
		Help: "Total number of sync-channel notifications published, by collection.",
	},
		[]string{"collection"},
	)

	OperationErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modgarage_operation_errors_total",
		Help: "Total number of errors encountered during specific operations.",
	},
		[]string{"operation"},
	)

	CollectionViewItems = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "modgarage_collection_view_items",
		Help: "Current number of items held in a synced collection view.",
	},
		[]string{"collection"},
	)
)
