package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegisterIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(transitions.WithLabelValues("service_order", "accepted"))
	IncTransition("service_order", "accepted")
	assert.Equal(t, before+1, testutil.ToFloat64(transitions.WithLabelValues("service_order", "accepted")))

	beforeRefund := testutil.ToFloat64(refunds.WithLabelValues("booking", "failed"))
	IncRefund("booking", "failed")
	assert.Equal(t, beforeRefund+1, testutil.ToFloat64(refunds.WithLabelValues("booking", "failed")))

	IncHTTP("/health", "200")
	assert.Equal(t, float64(1), testutil.ToFloat64(httpRequests.WithLabelValues("/health", "200")))

	IncNotification("stored")
	assert.GreaterOrEqual(t, testutil.ToFloat64(notifications.WithLabelValues("stored")), float64(1))
}
