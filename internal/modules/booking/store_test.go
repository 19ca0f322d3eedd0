package booking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/infra/infratest"
	"staybook/internal/modules/payment"
	"staybook/internal/types"
)

func TestStore_PaidOnceAndCancelCascades(t *testing.T) {
	db := infratest.DB(t)
	store := NewStore(db)
	ctx := context.Background()

	clientID, ownerID, propertyID := types.NewID(), types.NewID(), types.NewID()
	_, err := db.Exec(ctx, `
        INSERT INTO users (id, email, password_hash, role, status) VALUES
            ($1, 'guest@example.com', 'x', 'client', 'approved'),
            ($2, 'host@example.com', 'x', 'property_owner', 'approved')`,
		string(clientID), string(ownerID))
	require.NoError(t, err)
	_, err = db.Exec(ctx, `
        INSERT INTO properties (id, owner_id, title, price_per_night, max_guests, is_active)
        VALUES ($1, $2, 'Cabin', 8000, 2, TRUE)`, string(propertyID), string(ownerID))
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Microsecond)
	checkIn := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	b := &Booking{
		ID: types.NewID(), BookingCode: types.NewCode("BK"), ClientID: clientID, PropertyID: propertyID,
		CheckIn: checkIn, CheckOut: checkIn.AddDate(0, 0, 2), Guests: 2,
		PropertyTotal: 16000, ServicesTotal: 2500, DiscountAmount: 925, TotalAmount: 17575,
		Status: StatusPendingPayment, PaymentStatus: payment.StatusPending, RefundStatus: payment.RefundNone,
		CreatedAt: now, UpdatedAt: now,
		Services: []ServiceBooking{{
			ID: types.NewID(), CategoryID: "cleaning", ServiceName: "Cleaning", ServiceDate: checkIn,
			Hours: 1, Rate: 2500, Total: 2500, Status: ServiceAwaitingAssignment, CreatedAt: now,
		}},
	}
	require.NoError(t, store.Create(ctx, b))

	queue, err := store.ListServicesByStatus(ctx, ServiceAwaitingAssignment)
	require.NoError(t, err)
	require.Len(t, queue, 1)

	ok, err := store.MarkPaid(ctx, b.ID, "pi_1", now)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.MarkPaid(ctx, b.ID, "pi_1", now)
	require.NoError(t, err)
	assert.False(t, ok, "second paid transition must be a no-op")

	got, err := store.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, got.Status)
	assert.Equal(t, 1, got.StatusVersion)

	providerUserID, providerID := types.NewID(), types.NewID()
	_, err = db.Exec(ctx, `
        INSERT INTO users (id, email, password_hash, role, status)
        VALUES ($1, 'cleaner@example.com', 'x', 'service_provider', 'approved')`, string(providerUserID))
	require.NoError(t, err)
	_, err = db.Exec(ctx, `
        INSERT INTO service_providers (id, user_id, category_id, business_name, hourly_rate, approval_status)
        VALUES ($1, $2, 'cleaning', 'Sparkle', 2000, 'approved')`, string(providerID), string(providerUserID))
	require.NoError(t, err)
	_, err = db.Exec(ctx, `
        INSERT INTO job_assignments (id, service_booking_id, assigned_by, service_provider_id, status)
        VALUES ($1, $2, $3, $4, 'pending')`,
		string(types.NewID()), string(b.Services[0].ID), string(ownerID), string(providerID))
	require.NoError(t, err)
	offers, err := store.PendingOffers(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, providerID, offers[0].ProviderID)
	assert.Equal(t, b.Services[0].ID, offers[0].ServiceBookingID)

	stale := StatusUpdate{BookingID: b.ID, From: StatusConfirmed, To: StatusCancelled, Version: 0, ActorType: "client", At: now}
	ok, err = store.UpdateStatus(ctx, stale)
	require.NoError(t, err)
	assert.False(t, ok)

	stale.Version = got.StatusVersion
	ok, err = store.UpdateStatus(ctx, stale)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err = store.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	require.Len(t, got.Services, 1)
	assert.Equal(t, ServiceCancelled, got.Services[0].Status)

	offers, err = store.PendingOffers(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, offers, "cancel withdraws pending offers")

	ok, err = store.ClaimLateCapture(ctx, b.ID, "pi_1")
	require.NoError(t, err)
	assert.False(t, ok, "already paid; the cancel path refunds it")
	require.NoError(t, store.RequestRefund(ctx, b.ID))
	external, err := store.MarkRefunded(ctx, b.ID, "re_1")
	require.NoError(t, err)
	assert.False(t, external, "refund requested here")
	require.NoError(t, store.RecordRefund(ctx, b.ID, payment.RefundRefunded, "re_1"))
	got, err = store.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusRefunded, got.PaymentStatus)
	assert.Equal(t, payment.RefundRefunded, got.RefundStatus)

	var events int
	require.NoError(t, db.QueryRow(ctx,
		`SELECT COUNT(*) FROM order_state_events WHERE entity_kind = 'booking' AND entity_id = $1`, string(b.ID)).Scan(&events))
	assert.Equal(t, 3, events)

	byIntent, err := store.FindByPaymentIntent(ctx, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, b.ID, byIntent.ID)
}
