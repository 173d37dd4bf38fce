package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce    sync.Once
	importRuns      *prometheus.CounterVec
	importRows      *prometheus.CounterVec
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
)

// Register 初始化并注册 Prometheus 指标
func Register() {
	registerOnce.Do(func() {
		importRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grade_import_runs_total",
			Help: "Grade spreadsheet imports by outcome.",
		}, []string{"outcome"})

		importRows = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grade_import_rows_total",
			Help: "Rows seen by the grade importer, by result.",
		}, []string{"result"})

		requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests served.",
		}, []string{"method", "route", "status"})

		requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "route"})

		prometheus.MustRegister(importRuns, importRows, requestsTotal, requestDuration)
	})
}

// ImportRuns 导入次数，outcome: committed / rejected / decode_failed / storage_failed
func ImportRuns() *prometheus.CounterVec {
	Register()
	return importRuns
}

// ImportRows 导入行数，result: committed / invalid
func ImportRows() *prometheus.CounterVec {
	Register()
	return importRows
}

// Requests HTTP 请求计数
func Requests() *prometheus.CounterVec {
	Register()
	return requestsTotal
}

// RequestDuration HTTP 请求耗时
func RequestDuration() *prometheus.HistogramVec {
	Register()
	return requestDuration
}
