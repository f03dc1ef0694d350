package checkout

import (
	"strings"

	"github.com/google/uuid"

	"github.com/haatbazaar/marketplace-backend/pkg/config"
)

// DeliveryPolicy prices delivery for one seller's sub-order.
type DeliveryPolicy interface {
	ChargeFor(sellerID uuid.UUID, subtotalPaise int64) int64
}

// FreeDelivery never charges for delivery.
type FreeDelivery struct{}

func (FreeDelivery) ChargeFor(uuid.UUID, int64) int64 { return 0 }

// FlatDelivery charges a fixed fee per sub-order, waived once the sub-order
// subtotal reaches FreeAbovePaise. A zero threshold never waives.
type FlatDelivery struct {
	FeePaise       int64
	FreeAbovePaise int64
}

func (f FlatDelivery) ChargeFor(_ uuid.UUID, subtotalPaise int64) int64 {
	if f.FeePaise <= 0 {
		return 0
	}
	if f.FreeAbovePaise > 0 && subtotalPaise >= f.FreeAbovePaise {
		return 0
	}
	return f.FeePaise
}

// NewDeliveryPolicy selects the policy named by config.
func NewDeliveryPolicy(cfg config.DeliveryConfig) DeliveryPolicy {
	if strings.EqualFold(strings.TrimSpace(cfg.Mode), config.DeliveryModeFlat) {
		return FlatDelivery{FeePaise: cfg.FlatPaise, FreeAbovePaise: cfg.FreeAbovePaise}
	}
	return FreeDelivery{}
}
