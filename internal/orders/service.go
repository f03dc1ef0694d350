package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/haatbazaar/marketplace-backend/internal/catalog"
	"github.com/haatbazaar/marketplace-backend/internal/wallet"
	"github.com/haatbazaar/marketplace-backend/pkg/db/models"
	"github.com/haatbazaar/marketplace-backend/pkg/enums"
	pkgerrors "github.com/haatbazaar/marketplace-backend/pkg/errors"
	"github.com/haatbazaar/marketplace-backend/pkg/logger"
	"github.com/haatbazaar/marketplace-backend/pkg/metrics"
	"github.com/haatbazaar/marketplace-backend/pkg/outbox"
	"github.com/haatbazaar/marketplace-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// refunder is the slice of the wallet ledger used to settle and refund order coins.
type refunder interface {
	RedeemTx(ctx context.Context, tx *gorm.DB, input wallet.ApplyInput) (*wallet.Result, error)
	CreditTx(ctx context.Context, tx *gorm.DB, input wallet.ApplyInput) (*wallet.Result, error)
	DebitedForOrder(ctx context.Context, tx *gorm.DB, userID, orderID uuid.UUID, pool enums.WalletPool) (int64, error)
	RefundedForOrder(ctx context.Context, tx *gorm.DB, userID, orderID uuid.UUID, pool enums.WalletPool) (int64, error)
}

type stockReleaser interface {
	Release(ctx context.Context, tx *gorm.DB, lines []catalog.StockLine) error
}

// Service runs the order and sub-order state machine and its reads.
type Service interface {
	UpdateOrderStatus(ctx context.Context, input StatusInput) (*models.Order, error)
	UpdateSubOrderStatus(ctx context.Context, input StatusInput) (*models.SubOrder, error)
	CancelOrder(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error)
	SettleWalletDebit(ctx context.Context, input DeferredDebit) (*DebitSettlement, error)
	GetOrder(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error)
	ListBuyerOrders(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (*OrderList, error)
	ListSellerSubOrders(ctx context.Context, input SellerListInput) (*SubOrderList, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	wallet  refunder
	stock   stockReleaser
	metrics *metrics.SettlementMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewService builds the order state machine with the required dependencies.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher, ledger refunder, stock stockReleaser, m *metrics.SettlementMetrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("wallet refunder required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock releaser required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		outbox:  outbox,
		wallet:  ledger,
		stock:   stock,
		metrics: m,
		logg:    logg,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) UpdateOrderStatus(ctx context.Context, input StatusInput) (*models.Order, error) {
	return s.writeOrderStatus(ctx, input, false)
}

func (s *service) CancelOrder(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	return s.writeOrderStatus(ctx, StatusInput{ID: orderID, Status: enums.OrderStatusCancelled, Actor: actor}, true)
}

// writeOrderStatus sets the parent and fans the status out to every
// sub-order. All children are validated before anything is written.
func (s *service) writeOrderStatus(ctx context.Context, input StatusInput, buyerMayWrite bool) (*models.Order, error) {
	if err := validateStatusInput(input); err != nil {
		return nil, err
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.LockOrder(ctx, input.ID)
		if err != nil {
			return notFoundOr(err, "order not found", "load order")
		}
		subs, err := repo.ListSubOrders(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sub-orders")
		}
		if err := authorizeOrderWrite(order, subs, input.Actor, buyerMayWrite); err != nil {
			return err
		}
		if order.Status == input.Status {
			updated = order
			return nil
		}
		if !CanTransition(order.Status, input.Status) {
			return invalidTransition(order.Status, input.Status)
		}
		for _, sub := range subs {
			if sub.Status != input.Status && !CanTransition(sub.Status, input.Status) {
				return invalidTransition(sub.Status, input.Status).WithDetails(map[string]any{
					"sub_order_id": sub.ID,
					"from":         sub.Status,
					"to":           input.Status,
				})
			}
		}

		now := s.now()
		for i := range subs {
			sub := &subs[i]
			if sub.Status == input.Status {
				continue
			}
			if _, err := s.applySubOrderStatus(ctx, tx, order, sub, input.Status, input.Actor, now, true); err != nil {
				return err
			}
		}
		if err := s.applyOrderStatus(ctx, tx, order, input.Status, input.Actor, true); err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, updated.ID.String())
		logCtx = s.logg.WithField(logCtx, "status", updated.Status)
		s.logg.Info(logCtx, "order status written")
	}
	return updated, nil
}

func (s *service) UpdateSubOrderStatus(ctx context.Context, input StatusInput) (*models.SubOrder, error) {
	if err := validateStatusInput(input); err != nil {
		return nil, err
	}

	var updated *models.SubOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		unlocked, err := repo.FindSubOrder(ctx, input.ID)
		if err != nil {
			return notFoundOr(err, "sub-order not found", "load sub-order")
		}
		// Parent first so sibling writes on one order serialize.
		order, err := repo.LockOrder(ctx, unlocked.OrderID)
		if err != nil {
			return notFoundOr(err, "order not found", "load order")
		}
		sub, err := repo.LockSubOrder(ctx, input.ID)
		if err != nil {
			return notFoundOr(err, "sub-order not found", "load sub-order")
		}
		if sub.SellerID != input.Actor.UserID && !input.Actor.IsAdmin() {
			return pkgerrors.New(pkgerrors.CodeForbidden, "sub-order does not belong to seller")
		}
		if sub.Status == input.Status {
			updated = sub
			return nil
		}
		if !CanTransition(sub.Status, input.Status) {
			return invalidTransition(sub.Status, input.Status)
		}

		refunded, err := s.applySubOrderStatus(ctx, tx, order, sub, input.Status, input.Actor, s.now(), false)
		if err != nil {
			return err
		}

		siblings, err := repo.ListSubOrders(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload sub-orders")
		}
		statuses := make([]enums.OrderStatus, 0, len(siblings))
		for _, sibling := range siblings {
			statuses = append(statuses, sibling.Status)
		}
		target, ok := aggregateStatus(order.MultiSeller, statuses)
		if ok && target != order.Status {
			if err := s.applyOrderStatus(ctx, tx, order, target, input.Actor, false); err != nil {
				return err
			}
			if target == enums.OrderStatusCancelled {
				remainder, err := s.refundRemainder(ctx, tx, order)
				if err != nil {
					return err
				}
				refunded += remainder
			}
		}

		if input.Status == enums.OrderStatusCancelled {
			sellerID := sub.SellerID
			subID := sub.ID
			if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderCancelled,
				AggregateType: enums.AggregateSubOrder,
				AggregateID:   sub.ID,
				Version:       1,
				Actor:         actorRef(input.Actor),
				Data:          cancelledPayload(order, &subID, &sellerID, refunded),
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit sub-order cancelled")
			}
		}
		updated = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, updated.OrderID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"sub_order_id": updated.ID.String(),
			"status":       updated.Status,
		})
		s.logg.Info(logCtx, "sub-order status written")
	}
	return updated, nil
}

// applySubOrderStatus writes one sub-order and runs its side effects. When
// fanOut is set the parent write owns the refund and the notifications.
func (s *service) applySubOrderStatus(ctx context.Context, tx *gorm.DB, order *models.Order, sub *models.SubOrder, status enums.OrderStatus, actor Actor, now time.Time, fanOut bool) (int64, error) {
	repo := s.repo.WithTx(tx)
	from := sub.Status
	if err := repo.UpdateSubOrderStatus(ctx, sub.ID, status, now); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update sub-order status")
	}
	sub.Status = status
	stampSubOrder(sub, status, now)
	s.metrics.IncStatusWrite("sub_order", status.String())

	var refunded int64
	switch status {
	case enums.OrderStatusCancelled:
		if err := s.releaseStock(ctx, tx, sub.ID); err != nil {
			return 0, err
		}
		if !fanOut {
			amount, err := s.refundShare(ctx, tx, order, sub)
			if err != nil {
				return 0, err
			}
			refunded = amount
		}
	case enums.OrderStatusShipped:
		if !fanOut {
			sellerID := sub.SellerID
			subID := sub.ID
			if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderShipped,
				AggregateType: enums.AggregateSubOrder,
				AggregateID:   sub.ID,
				Version:       1,
				Actor:         actorRef(actor),
				Data:          shippedPayload(order, &subID, &sellerID),
			}); err != nil {
				return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit sub-order shipped")
			}
		}
	}

	subID := sub.ID
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateSubOrder,
		AggregateID:   sub.ID,
		Version:       1,
		Actor:         actorRef(actor),
		Data:          statusChangedPayload(order, &subID, from, status, actor),
	}); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit sub-order status change")
	}
	return refunded, nil
}

// applyOrderStatus writes the parent. direct marks an explicit parent write,
// which owns the full refund and the order-level notifications.
func (s *service) applyOrderStatus(ctx context.Context, tx *gorm.DB, order *models.Order, status enums.OrderStatus, actor Actor, direct bool) error {
	repo := s.repo.WithTx(tx)
	from := order.Status
	if err := repo.UpdateOrderStatus(ctx, order.ID, status); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	order.Status = status
	s.metrics.IncStatusWrite("order", status.String())

	if direct {
		switch status {
		case enums.OrderStatusCancelled:
			refunded, err := s.refundRemainder(ctx, tx, order)
			if err != nil {
				return err
			}
			if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderCancelled,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Version:       1,
				Actor:         actorRef(actor),
				Data:          cancelledPayload(order, nil, nil, refunded),
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order cancelled")
			}
		case enums.OrderStatusShipped:
			if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderShipped,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Version:       1,
				Actor:         actorRef(actor),
				Data:          shippedPayload(order, nil, nil),
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order shipped")
			}
		}
	}

	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Actor:         actorRef(actor),
		Data:          statusChangedPayload(order, nil, from, status, actor),
	})
}

func (s *service) releaseStock(ctx context.Context, tx *gorm.DB, subOrderID uuid.UUID) error {
	items, err := s.repo.WithTx(tx).ListItems(ctx, []uuid.UUID{subOrderID})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sub-order items")
	}
	lines := make([]catalog.StockLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, catalog.StockLine{
			ItemID:    item.ID,
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
		})
	}
	return s.stock.Release(ctx, tx, lines)
}

func (s *service) GetOrder(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		return nil, notFoundOr(err, "order not found", "load order")
	}
	if actor.IsAdmin() || order.BuyerID == actor.UserID {
		return order, nil
	}

	// Sellers only see their own slice of the order.
	subs := make([]models.SubOrder, 0, len(order.SubOrders))
	for _, sub := range order.SubOrders {
		if sub.SellerID == actor.UserID {
			subs = append(subs, sub)
		}
	}
	if len(subs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	items := make([]models.OrderItem, 0, len(order.Items))
	for _, item := range order.Items {
		if item.SellerID == actor.UserID {
			items = append(items, item)
		}
	}
	order.SubOrders = subs
	order.Items = items
	return order, nil
}

func (s *service) ListBuyerOrders(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (*OrderList, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	rows, next, err := s.repo.ListBuyerOrders(ctx, buyerID, listParams{Limit: params.Limit, Cursor: cursor})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return &OrderList{Orders: rows, NextCursor: pagination.EncodeCursor(next)}, nil
}

func (s *service) ListSellerSubOrders(ctx context.Context, input SellerListInput) (*SubOrderList, error) {
	if input.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	if input.Status != nil && !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	cursor, err := pagination.ParseCursor(input.Params.Cursor)
	if err != nil {
		return nil, err
	}
	rows, next, err := s.repo.ListSellerSubOrders(ctx, input.SellerID, input.Status, listParams{Limit: input.Params.Limit, Cursor: cursor})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list sub-orders")
	}
	return &SubOrderList{SubOrders: rows, NextCursor: pagination.EncodeCursor(next)}, nil
}

func validateStatusInput(input StatusInput) error {
	if input.ID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "id required")
	}
	if !input.Status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid status").WithDetails(map[string]any{"status": input.Status})
	}
	if input.Actor.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	return nil
}

// authorizeOrderWrite allows admins, a seller that owns every sub-order and,
// for cancellations, the buyer.
func authorizeOrderWrite(order *models.Order, subs []models.SubOrder, actor Actor, buyerMayWrite bool) error {
	if actor.IsAdmin() {
		return nil
	}
	if buyerMayWrite && order.BuyerID == actor.UserID {
		return nil
	}
	if len(subs) == 0 {
		return pkgerrors.New(pkgerrors.CodeForbidden, "order status write not allowed")
	}
	for _, sub := range subs {
		if sub.SellerID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order status write not allowed")
		}
	}
	return nil
}

func invalidTransition(from, to enums.OrderStatus) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf("cannot move from %s to %s", from, to)).
		WithDetails(map[string]any{"from": from, "to": to})
}

func notFoundOr(err error, notFound, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}

func stampSubOrder(sub *models.SubOrder, status enums.OrderStatus, now time.Time) {
	at := now
	switch status {
	case enums.OrderStatusShipped:
		sub.ShippedAt = &at
	case enums.OrderStatusDelivered:
		sub.DeliveredAt = &at
	case enums.OrderStatusCancelled:
		sub.CancelledAt = &at
	}
}

func actorRef(actor Actor) *outbox.ActorRef {
	return &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role.String()}
}
