package order

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusShipped, false},
		{StatusPending, StatusDelivered, false},
		{StatusConfirmed, StatusShipped, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusConfirmed, StatusDelivered, false},
		{StatusShipped, StatusDelivered, true},
		{StatusShipped, StatusCancelled, true},
		{StatusShipped, StatusConfirmed, false},
		{StatusDelivered, StatusCancelled, false},
		{StatusDelivered, StatusDelivered, false},
		{StatusCancelled, StatusConfirmed, false},
		{StatusCancelled, StatusPending, false},
	}
	for _, c := range cases {
		assert.Equalf(t, c.allowed, c.from.CanTransitionTo(c.to), "%s -> %s", c.from, c.to)
	}
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusDelivered.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusConfirmed.Terminal())
	assert.False(t, StatusShipped.Terminal())
}

func TestRecomputeTotal(t *testing.T) {
	o := &Order{
		Items: []OrderItem{
			{Quantity: 2, UnitPrice: 25},
			{Quantity: 1, UnitPrice: 60},
		},
	}
	o.RecomputeTotal()
	require.Equal(t, int64(110), o.TotalAmount)
	assert.Equal(t, int64(50), o.Items[0].LineTotal)
	assert.Equal(t, int64(60), o.Items[1].LineTotal)

	o.Items = o.Items[:1]
	o.RecomputeTotal()
	assert.Equal(t, int64(50), o.TotalAmount)
}

func TestAppendHistoryKeepsStatusInSync(t *testing.T) {
	o := &Order{Status: StatusPending}
	now := time.Now()
	o.AppendHistory(StatusConfirmed, 7, "confirmed by admin", now)

	require.Len(t, o.StatusHistory, 1)
	last := o.StatusHistory[len(o.StatusHistory)-1]
	assert.Equal(t, o.Status, last.Status)
	assert.Equal(t, int64(7), last.ActorID)
	assert.Equal(t, now, last.CreatedAt)
}

func TestTrackingInfoEmpty(t *testing.T) {
	assert.True(t, TrackingInfo{}.Empty())
	assert.True(t, TrackingInfo{Provider: "AE"}.Empty())
	assert.True(t, TrackingInfo{TrackingNumber: "AE123"}.Empty())
	assert.False(t, TrackingInfo{Provider: "AE", TrackingNumber: "AE123"}.Empty())
}
