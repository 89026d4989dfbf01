package metrics

import (
	"license-authority/internal/domain/model"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		licensesIssuedTotal,
		licensesRevokedTotal,
		licenseVerificationsTotal,
		deviceAdmissionsTotal,
		licensesExpiringSoon,
	)
}

var (
	licensesIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "licenses_issued_total",
			Help: "Total number of licenses issued, by tier.",
		},
		[]string{"tier"},
	)

	licensesRevokedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "licenses_revoked_total",
			Help: "Total number of licenses revoked.",
		},
	)

	licenseVerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "license_verifications_total",
			Help: "Total verification calls by result (valid, revoked, expired, bad_token, not_found).",
		},
		[]string{"result"},
	)

	deviceAdmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "device_admissions_total",
			Help: "Device admission attempts by outcome.",
		},
		[]string{"outcome"},
	)

	licensesExpiringSoon = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "licenses_expiring_soon",
			Help: "Licenses expiring within the configured alert window.",
		},
	)
)

func IncLicenseIssued(tier model.Tier) {
	licensesIssuedTotal.WithLabelValues(string(tier)).Inc()
}

func IncLicenseRevoked() {
	licensesRevokedTotal.Inc()
}

func IncVerification(result string) {
	licenseVerificationsTotal.WithLabelValues(result).Inc()
}

func IncDeviceAdmission(outcome model.ActivationOutcome) {
	deviceAdmissionsTotal.WithLabelValues(string(outcome)).Inc()
}

func SetLicensesExpiringSoon(n int) {
	licensesExpiringSoon.Set(float64(n))
}
