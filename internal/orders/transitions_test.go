package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/haatbazaar/marketplace-backend/pkg/enums"
)

func TestCanTransition(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from enums.OrderStatus
		to   enums.OrderStatus
		want bool
	}{
		{enums.OrderStatusPending, enums.OrderStatusProcessing, true},
		{enums.OrderStatusPending, enums.OrderStatusCancelled, true},
		{enums.OrderStatusProcessing, enums.OrderStatusShipped, true},
		{enums.OrderStatusProcessing, enums.OrderStatusCancelled, true},
		{enums.OrderStatusShipped, enums.OrderStatusDelivered, true},
		{enums.OrderStatusDelivered, enums.OrderStatusApproveReturn, true},
		{enums.OrderStatusApproveReturn, enums.OrderStatusProcessReturn, true},
		{enums.OrderStatusProcessReturn, enums.OrderStatusCompletedReturn, true},
		{enums.OrderStatusDelivered, enums.OrderStatusRejectReturn, true},
		{enums.OrderStatusShipped, enums.OrderStatusCancelled, false},
		{enums.OrderStatusPending, enums.OrderStatusDelivered, false},
		{enums.OrderStatusCancelled, enums.OrderStatusPending, false},
		{enums.OrderStatusCompletedReturn, enums.OrderStatusDelivered, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestIsTerminal(t *testing.T) {
	t.Parallel()

	assert.True(t, IsTerminal(enums.OrderStatusCancelled))
	assert.True(t, IsTerminal(enums.OrderStatusCompletedReturn))
	assert.True(t, IsTerminal(enums.OrderStatusRejectReturn))
	assert.False(t, IsTerminal(enums.OrderStatusDelivered))
	assert.False(t, IsTerminal(enums.OrderStatusPending))
}

func TestAggregateStatus(t *testing.T) {
	t.Parallel()

	status, ok := aggregateStatus(false, []enums.OrderStatus{enums.OrderStatusShipped})
	assert.True(t, ok)
	assert.Equal(t, enums.OrderStatusShipped, status)

	status, ok = aggregateStatus(true, []enums.OrderStatus{enums.OrderStatusShipped, enums.OrderStatusShipped})
	assert.True(t, ok)
	assert.Equal(t, enums.OrderStatusShipped, status)

	_, ok = aggregateStatus(true, []enums.OrderStatus{enums.OrderStatusShipped, enums.OrderStatusProcessing})
	assert.False(t, ok)

	_, ok = aggregateStatus(true, nil)
	assert.False(t, ok)
}
