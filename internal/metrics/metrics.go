// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TokensIssued counts confirmation tokens written, by purpose.
	TokensIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "account_tokens_issued_total",
		Help: "Confirmation tokens issued",
	}, []string{"purpose"})

	// TokensRedeemed counts redeem attempts, by purpose and outcome.
	TokensRedeemed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "account_tokens_redeemed_total",
		Help: "Confirmation token redeem attempts by outcome",
	}, []string{"purpose", "outcome"})

	// TokensSwept counts expired tokens deleted by the reaper.
	TokensSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "account_tokens_swept_total",
		Help: "Expired confirmation tokens deleted by the reaper",
	})

	// EmailsSent counts delivery attempts, by status.
	EmailsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "account_emails_sent_total",
		Help: "Transactional emails handed to the provider",
	}, []string{"status"})

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"method", "path"})
)

// Handler serves the Prometheus exposition format.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}

// Middleware records request counts and latency per route pattern.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			// Route pattern keeps label cardinality bounded
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}

			httpRequestsTotal.WithLabelValues(c.Request().Method, path, strconv.Itoa(status)).Inc()
			httpRequestDuration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
