package orders

import (
	"github.com/google/uuid"

	"github.com/haatbazaar/marketplace-backend/pkg/db/models"
	"github.com/haatbazaar/marketplace-backend/pkg/enums"
	"github.com/haatbazaar/marketplace-backend/pkg/pagination"
)

// Actor identifies who requested an operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.ActorRole
}

// IsAdmin reports whether the actor carries the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == enums.ActorRoleAdmin
}

// StatusInput requests a status write on an order or a sub-order.
type StatusInput struct {
	ID     uuid.UUID
	Status enums.OrderStatus
	Actor  Actor
}

// SellerListInput filters the seller sub-order queue.
type SellerListInput struct {
	SellerID uuid.UUID
	Status   *enums.OrderStatus
	Params   pagination.Params
}

// OrderList wraps one page of buyer orders.
type OrderList struct {
	Orders     []models.Order `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// SubOrderList wraps one page of seller sub-orders.
type SubOrderList struct {
	SubOrders  []models.SubOrder `json:"sub_orders"`
	NextCursor string            `json:"next_cursor,omitempty"`
}
