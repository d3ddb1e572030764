package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Counters are created at declaration so services can increment them even
// when no registry was wired (tests). InitCustomMetrics registers them.
var (
	RefreshPerformedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pitchly_refresh_performed_total",
		Help: "Total number of access-token exchanges performed.",
	})
	RefreshSkippedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pitchly_refresh_skipped_total",
		Help: "Total number of refresh calls answered from the cached token.",
	})
	RefreshFailedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pitchly_refresh_failed_total",
		Help: "Total number of failed token exchanges.",
	})
	ProfileSyncFailedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pitchly_profile_sync_failed_total",
		Help: "Total number of best-effort profile syncs that failed.",
	})
	LoginSuccessTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pitchly_logins_success_total",
		Help: "Total number of successful Pitchly logins.",
	})
	LoginFailureTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pitchly_logins_failure_total",
		Help: "Total number of failed Pitchly logins.",
	})
)

// InitCustomMetrics registers the custom metrics with reg. It should be
// called once at application startup.
func InitCustomMetrics(reg prometheus.Registerer) {
	if reg == nil {
		return
	}
	collectors := []prometheus.Collector{
		RefreshPerformedTotal,
		RefreshSkippedTotal,
		RefreshFailedTotal,
		ProfileSyncFailedTotal,
		LoginSuccessTotal,
		LoginFailureTotal,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			log.Warn().Err(err).Msg("Failed to register metric")
		}
	}
}
