package metrics

import (
    "net/http"
    "time"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
    runsTotal = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "tableminer",
            Name:      "runs_total",
            Help:      "Extraction runs by outcome (finished, cancelled, failed, empty)",
        },
        []string{"outcome"},
    )

    runDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: "tableminer",
            Name:      "run_duration_seconds",
            Help:      "Duration of extraction runs by outcome",
            Buckets:   prometheus.DefBuckets,
        },
        []string{"outcome"},
    )

    tablesExtracted = prometheus.NewCounter(
        prometheus.CounterOpts{
            Namespace: "tableminer",
            Name:      "tables_extracted_total",
            Help:      "Total table artifacts produced",
        },
    )

    pagesDebited = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "tableminer",
            Name:      "pages_debited_total",
            Help:      "Pages debited against user quotas, labeled by override",
        },
        []string{"override"},
    )

    activeJobs = prometheus.NewGauge(
        prometheus.GaugeOpts{
            Namespace: "tableminer",
            Name:      "active_jobs",
            Help:      "Number of extraction jobs currently in flight",
        },
    )

    quotaResets = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "tableminer",
            Name:      "quota_resets_total",
            Help:      "Quota reset sweep results per user record (reset, skipped)",
        },
        []string{"result"},
    )

    askRequests = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "tableminer",
            Name:      "ask_requests_total",
            Help:      "Table Q&A requests by provider and result",
        },
        []string{"provider", "result"},
    )
)

// Init registers collectors.
func Init() {
    prometheus.MustRegister(runsTotal, runDuration, tablesExtracted, pagesDebited, activeJobs, quotaResets, askRequests)
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func ObserveRun(outcome string, dur time.Duration) {
    runsTotal.WithLabelValues(outcome).Inc()
    runDuration.WithLabelValues(outcome).Observe(dur.Seconds())
}

func IncTables(n int)   { tablesExtracted.Add(float64(n)) }
func JobStarted()       { activeJobs.Inc() }
func JobDone()          { activeJobs.Dec() }

func AddDebited(pages int, override bool) {
    pagesDebited.WithLabelValues(boolToStr(override)).Add(float64(pages))
}

func IncReset(result string) { quotaResets.WithLabelValues(result).Inc() }

func ObserveAsk(provider, result string) { askRequests.WithLabelValues(provider, result).Inc() }

func boolToStr(b bool) string {
    if b {
        return "true"
    }
    return "false"
}
