// Package metrics exposes the CCP and scheduler time series (spec.md §3,
// §4.5, §4.6) as Prometheus collectors, grounded on
// josephblackelite-nhbchain's observability/metrics package.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles every gauge/counter the simulator publishes.
type Registry struct {
	Tick              prometheus.Gauge
	ActiveBanks       prometheus.Gauge
	DefaultsTotal     prometheus.Counter
	FreezeEvents      prometheus.Counter
	CCPMarginRate     prometheus.Gauge
	CCPPanicMode      prometheus.Gauge
	CCPDefaultFund    prometheus.Gauge
	CCPFireSaleVolume prometheus.Gauge
	CCPUtility        prometheus.Gauge
	ActionsEmitted    *prometheus.CounterVec
}

// NewRegistry constructs and registers every collector against reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		Tick: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "interbank", Name: "tick", Help: "current simulation tick",
		}),
		ActiveBanks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "interbank", Name: "active_banks", Help: "non-defaulted bank count",
		}),
		DefaultsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "interbank", Name: "defaults_total", Help: "cumulative bank defaults",
		}),
		FreezeEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "interbank", Name: "freeze_events_total", Help: "ticks where >50% of active banks are stressed",
		}),
		CCPMarginRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "interbank", Subsystem: "ccp", Name: "margin_rate", Help: "current published margin rate",
		}),
		CCPPanicMode: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "interbank", Subsystem: "ccp", Name: "panic_mode", Help: "1 if the CCP is in panic mode",
		}),
		CCPDefaultFund: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "interbank", Subsystem: "ccp", Name: "default_fund", Help: "current default fund balance",
		}),
		CCPFireSaleVolume: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "interbank", Subsystem: "ccp", Name: "fire_sale_volume", Help: "fire sale volume this tick",
		}),
		CCPUtility: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "interbank", Subsystem: "ccp", Name: "utility", Help: "CCP net utility this tick",
		}),
		ActionsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "interbank", Name: "actions_emitted_total", Help: "intents emitted, by action type",
		}, []string{"action_type"}),
	}

	reg.MustRegister(
		r.Tick, r.ActiveBanks, r.DefaultsTotal, r.FreezeEvents,
		r.CCPMarginRate, r.CCPPanicMode, r.CCPDefaultFund, r.CCPFireSaleVolume, r.CCPUtility,
		r.ActionsEmitted,
	)
	return r
}
