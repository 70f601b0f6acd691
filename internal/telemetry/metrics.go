package telemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/authsession"
)

// Metrics holds the OpenTelemetry instruments of the session core
type Metrics struct {
	// Login metrics
	LoginsTotal        metric.Int64Counter
	LoginFailuresTotal metric.Int64Counter
	LoginDuration      metric.Float64Histogram

	// Session lifecycle metrics
	LogoutsTotal metric.Int64Counter
	ResumesTotal metric.Int64Counter

	// Profile reaction metrics
	ProfileFetchesTotal      metric.Int64Counter
	ProfileFetchErrorsTotal  metric.Int64Counter
	ProfileFetchStaleDropped metric.Int64Counter

	// State metrics
	StatePublishesTotal metric.Int64Counter
}

// NewMetrics creates the session instruments from mp.
// A nil mp uses the global meter provider.
func NewMetrics(mp metric.MeterProvider) *Metrics {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	meter := mp.Meter(meterName)

	m := &Metrics{}

	m.LoginsTotal, _ = meter.Int64Counter(
		"authsession.logins.total",
		metric.WithDescription("Total number of successful logins"),
		metric.WithUnit("{login}"),
	)

	m.LoginFailuresTotal, _ = meter.Int64Counter(
		"authsession.logins.failures.total",
		metric.WithDescription("Total number of failed logins by failure kind"),
		metric.WithUnit("{login}"),
	)

	m.LoginDuration, _ = meter.Float64Histogram(
		"authsession.logins.duration",
		metric.WithDescription("Duration of login attempts"),
		metric.WithUnit("ms"),
	)

	m.LogoutsTotal, _ = meter.Int64Counter(
		"authsession.logouts.total",
		metric.WithDescription("Total number of logouts"),
		metric.WithUnit("{logout}"),
	)

	m.ResumesTotal, _ = meter.Int64Counter(
		"authsession.resumes.total",
		metric.WithDescription("Total number of startup resumptions by outcome"),
		metric.WithUnit("{resume}"),
	)

	m.ProfileFetchesTotal, _ = meter.Int64Counter(
		"authsession.profile.fetches.total",
		metric.WithDescription("Total number of profile fetches started"),
		metric.WithUnit("{fetch}"),
	)

	m.ProfileFetchErrorsTotal, _ = meter.Int64Counter(
		"authsession.profile.fetch_errors.total",
		metric.WithDescription("Total number of failed profile fetches"),
		metric.WithUnit("{error}"),
	)

	m.ProfileFetchStaleDropped, _ = meter.Int64Counter(
		"authsession.profile.stale_dropped.total",
		metric.WithDescription("Total number of profile results dropped because the status changed"),
		metric.WithUnit("{fetch}"),
	)

	m.StatePublishesTotal, _ = meter.Int64Counter(
		"authsession.state.publishes.total",
		metric.WithDescription("Total number of auth status publishes"),
		metric.WithUnit("{publish}"),
	)

	return m
}
