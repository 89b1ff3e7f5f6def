package connection

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/your-org/storefront/internal/domain"
)

var (
	connectAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_store_resolutions_total",
			Help: "Store resolutions by outcome of the real database connection",
		},
		[]string{"result"},
	)
	storeMode = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "storefront_store_mode",
			Help: "1 for the store mode currently in use",
		},
		[]string{"mode"},
	)
)

func setModeGauge(mode domain.Mode) {
	for _, m := range []domain.Mode{domain.ModeMock, domain.ModeReal} {
		v := 0.0
		if m == mode {
			v = 1
		}
		storeMode.WithLabelValues(m.String()).Set(v)
	}
}
