package checkout

import (
	"github.com/google/uuid"

	"github.com/haatbazaar/marketplace-backend/internal/cart"
	pkgerrors "github.com/haatbazaar/marketplace-backend/pkg/errors"
)

// SubOrderDraft is one seller's slice of a checkout before persistence.
type SubOrderDraft struct {
	SellerID            uuid.UUID
	Lines               []cart.Line
	SubtotalPaise       int64
	DeliveryChargePaise int64
}

// Split is the seller grouping of a snapshot plus the parent amounts.
type Split struct {
	SubOrders           []SubOrderDraft
	SubtotalPaise       int64
	DeliveryChargePaise int64
	MultiSeller         bool
}

// SplitSnapshot groups a violation-free snapshot by seller. Groups keep the
// order in which each seller first appears in the cart.
func SplitSnapshot(snapshot *cart.Snapshot, delivery DeliveryPolicy) (*Split, error) {
	if snapshot == nil || len(snapshot.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
	}
	if !snapshot.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeStockViolation, "cart has unavailable items").WithDetails(snapshot.Violations)
	}
	if delivery == nil {
		delivery = FreeDelivery{}
	}

	index := make(map[uuid.UUID]int)
	split := &Split{}
	for _, line := range snapshot.Lines {
		pos, ok := index[line.SellerID]
		if !ok {
			pos = len(split.SubOrders)
			index[line.SellerID] = pos
			split.SubOrders = append(split.SubOrders, SubOrderDraft{SellerID: line.SellerID})
		}
		draft := &split.SubOrders[pos]
		draft.Lines = append(draft.Lines, line)
		draft.SubtotalPaise += line.LineTotalPaise()
	}

	for i := range split.SubOrders {
		draft := &split.SubOrders[i]
		draft.DeliveryChargePaise = delivery.ChargeFor(draft.SellerID, draft.SubtotalPaise)
		split.SubtotalPaise += draft.SubtotalPaise
		split.DeliveryChargePaise += draft.DeliveryChargePaise
	}
	split.MultiSeller = len(split.SubOrders) >= 2
	return split, nil
}
