package repositories

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	snapshotWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_mock_snapshot_writes_total",
			Help: "The total number of successful mock store snapshot writes",
		},
	)
	snapshotFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_mock_snapshot_failures_total",
			Help: "The total number of mock store snapshot writes that failed",
		},
	)
	imageRehydrations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_mock_image_rehydrations_total",
			Help: "Images rebuilt from the images collection after a cache miss",
		},
	)
	mockDocuments = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "storefront_mock_documents",
			Help: "Documents held by the mock store per collection",
		},
		[]string{"collection"},
	)
)
