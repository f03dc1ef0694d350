// Package settlement handles the post-commit side effects of checkout and
// status writes: wallet debits, first purchase rewards, notifications and
// lifecycle emails. Every step is guarded so redelivery never repeats it.
package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/haatbazaar/marketplace-backend/internal/emails"
	"github.com/haatbazaar/marketplace-backend/internal/notifications"
	"github.com/haatbazaar/marketplace-backend/internal/orders"
	"github.com/haatbazaar/marketplace-backend/internal/wallet"
	"github.com/haatbazaar/marketplace-backend/pkg/db/models"
	"github.com/haatbazaar/marketplace-backend/pkg/enums"
	pkgerrors "github.com/haatbazaar/marketplace-backend/pkg/errors"
	"github.com/haatbazaar/marketplace-backend/pkg/logger"
	"github.com/haatbazaar/marketplace-backend/pkg/metrics"
	"github.com/haatbazaar/marketplace-backend/pkg/outbox/payloads"
	"github.com/haatbazaar/marketplace-backend/pkg/outbox/registry"
)

const consumerName = "settlement"

type orderLoader interface {
	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

// debitSettler applies a deferred wallet debit under the order lock.
type debitSettler interface {
	SettleWalletDebit(ctx context.Context, input orders.DeferredDebit) (*orders.DebitSettlement, error)
}

type walletLedger interface {
	ProcessFirstPurchaseReward(ctx context.Context, userID, orderID uuid.UUID) (*wallet.Result, error)
}

type notifier interface {
	NotifyUser(ctx context.Context, userID uuid.UUID, payload notifications.Payload)
}

type stepGuard interface {
	Guard(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) (bool, error)
}

// Params wires the consumer's collaborators.
type Params struct {
	Orders   orderLoader
	Debits   debitSettler
	Wallet   walletLedger
	Notifier notifier
	Emails   emails.Service
	Guard    stepGuard
	Metrics  *metrics.SettlementMetrics
	Logger   *logger.Logger
}

// Consumer dispatches resolved settlement events.
type Consumer struct {
	orders   orderLoader
	debits   debitSettler
	wallet   walletLedger
	notifier notifier
	emails   emails.Service
	guard    stepGuard
	metrics  *metrics.SettlementMetrics
	logg     *logger.Logger
}

func NewConsumer(params Params) (*Consumer, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("order loader required")
	}
	if params.Debits == nil {
		return nil, fmt.Errorf("debit settler required")
	}
	if params.Wallet == nil {
		return nil, fmt.Errorf("wallet ledger required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Emails == nil {
		return nil, fmt.Errorf("email service required")
	}
	if params.Guard == nil {
		return nil, fmt.Errorf("idempotency guard required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		orders:   params.Orders,
		debits:   params.Debits,
		wallet:   params.Wallet,
		notifier: params.Notifier,
		emails:   params.Emails,
		guard:    params.Guard,
		metrics:  params.Metrics,
		logg:     params.Logger,
	}, nil
}

// EventTypes lists the events this consumer handles.
func (c *Consumer) EventTypes() []enums.OutboxEventType {
	return []enums.OutboxEventType{
		enums.EventOrderPlaced,
		enums.EventWalletDebitRequested,
		enums.EventOrderStatusChanged,
		enums.EventOrderShipped,
		enums.EventOrderCancelled,
	}
}

// Handle runs every step for the event. Failed steps are combined into one
// error so the row is retried; steps that already succeeded are skipped on
// the next delivery.
func (c *Consumer) Handle(ctx context.Context, event *registry.ResolvedEvent) error {
	if event == nil {
		return registry.NewNonRetryableError(errors.New("nil event"))
	}
	eventID, err := event.EventID()
	if err != nil {
		return registry.NewNonRetryableError(fmt.Errorf("parse event id: %w", err))
	}
	ctx = c.logg.WithFields(ctx, map[string]any{
		"event_id":   eventID.String(),
		"event_type": event.Descriptor.EventType,
		"consumer":   consumerName,
	})

	switch payload := event.Payload.(type) {
	case *payloads.OrderPlacedEvent:
		return c.handleOrderPlaced(ctx, eventID, payload)
	case *payloads.WalletDebitRequestedEvent:
		return c.handleWalletDebit(ctx, eventID, payload)
	case *payloads.OrderStatusChangedEvent:
		return c.handleStatusChanged(ctx, eventID, payload)
	case *payloads.OrderShippedEvent:
		return c.handleShipped(ctx, eventID, payload)
	case *payloads.OrderCancelledEvent:
		return c.handleCancelled(ctx, eventID, payload)
	default:
		return registry.NewNonRetryableError(fmt.Errorf("unsupported payload %T", event.Payload))
	}
}

// step runs fn once per (step, event).
func (c *Consumer) step(ctx context.Context, name string, eventID uuid.UUID, fn func(context.Context) error) error {
	ran, err := c.guard.Guard(ctx, consumerName+"."+name, eventID, fn)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if !ran {
		c.logg.Debug(c.logg.WithField(ctx, "step", name), "step already processed")
	}
	return nil
}

func (c *Consumer) handleOrderPlaced(ctx context.Context, eventID uuid.UUID, evt *payloads.OrderPlacedEvent) error {
	ctx = c.logg.WithOrderID(ctx, evt.OrderID.String())

	var errs error
	errs = multierr.Append(errs, c.step(ctx, "first_purchase_reward", eventID, func(ctx context.Context) error {
		result, err := c.wallet.ProcessFirstPurchaseReward(ctx, evt.BuyerID, evt.OrderID)
		if err != nil {
			return err
		}
		if result != nil && result.Applied {
			c.notifier.NotifyUser(ctx, evt.BuyerID, notifications.Payload{
				Title:   "Welcome reward credited",
				Message: fmt.Sprintf("%d coins were added to your wallet for your first order.", result.Transaction.Amount),
				Type:    enums.NotificationTypeWalletCredited,
				Link:    "/wallet",
			})
		}
		return nil
	}))
	errs = multierr.Append(errs, c.step(ctx, "placed_notifications", eventID, func(ctx context.Context) error {
		c.notifier.NotifyUser(ctx, evt.BuyerID, notifications.Payload{
			Title:   "Order placed",
			Message: "We received your order and shared it with the sellers.",
			Type:    enums.NotificationTypeOrderPlaced,
			Link:    orderLink(evt.OrderID),
		})
		for _, sellerID := range evt.SellerIDs {
			c.notifier.NotifyUser(ctx, sellerID, notifications.Payload{
				Title:   "New order received",
				Message: "A buyer placed an order containing your products.",
				Type:    enums.NotificationTypeOrderPlaced,
				Link:    "/seller/sub-orders",
			})
		}
		return nil
	}))
	errs = multierr.Append(errs, c.step(ctx, "placed_emails", eventID, func(ctx context.Context) error {
		order, err := c.orders.FindOrder(ctx, evt.OrderID)
		if err != nil {
			return err
		}
		return c.emails.SendOrderPlacedEmails(ctx, orderEmail(order, nil, 0))
	}))
	return c.finish(ctx, "order_placed", errs)
}

// handleWalletDebit settles debits the coordinator could not apply inline.
// The ledger keys are shared with the inline path, so an already applied
// debit is a no-op. Settling also pays the refunds of sub-orders cancelled
// before the debit landed.
func (c *Consumer) handleWalletDebit(ctx context.Context, eventID uuid.UUID, evt *payloads.WalletDebitRequestedEvent) error {
	ctx = c.logg.WithOrderID(ctx, evt.OrderID.String())

	err := c.step(ctx, "wallet_debit", eventID, func(ctx context.Context) error {
		result, err := c.debits.SettleWalletDebit(ctx, orders.DeferredDebit{
			OrderID: evt.OrderID,
			BuyerID: evt.BuyerID,
			Debits:  evt.Debits,
		})
		if err != nil {
			return err
		}
		if result.Skipped {
			c.logg.Warn(ctx, "order cancelled before wallet debit settled, skipping debit")
		}
		return nil
	})
	switch {
	case err == nil:
	case pkgerrors.HasCode(err, pkgerrors.CodeNotFound):
		return registry.NewNonRetryableError(err)
	case pkgerrors.HasCode(err, pkgerrors.CodeInsufficientBalance):
		c.metrics.IncPostCommitFailure("wallet_debit")
		alertCtx := c.logg.WithField(ctx, "alert", true)
		c.logg.Error(alertCtx, "wallet debit cannot be settled, balance spent elsewhere", err)
		return registry.NewNonRetryableError(err)
	}
	return c.finish(ctx, "wallet_debit_requested", err)
}

// handleStatusChanged notifies the buyer of sub-order progress. Shipped and
// cancelled have dedicated events; parent rows only mirror their children.
func (c *Consumer) handleStatusChanged(ctx context.Context, eventID uuid.UUID, evt *payloads.OrderStatusChangedEvent) error {
	if evt.SubOrderID == nil {
		return nil
	}
	if evt.To == enums.OrderStatusShipped || evt.To == enums.OrderStatusCancelled {
		return nil
	}
	ctx = c.logg.WithOrderID(ctx, evt.OrderID.String())
	err := c.step(ctx, "status_notification", eventID, func(ctx context.Context) error {
		c.notifier.NotifyUser(ctx, evt.BuyerID, notifications.Payload{
			Title:   "Order update",
			Message: fmt.Sprintf("Part of your order is now %s.", statusLabel(evt.To)),
			Type:    enums.NotificationTypeOrderStatus,
			Link:    orderLink(evt.OrderID),
		})
		return nil
	})
	return c.finish(ctx, "order_status_changed", err)
}

func (c *Consumer) handleShipped(ctx context.Context, eventID uuid.UUID, evt *payloads.OrderShippedEvent) error {
	ctx = c.logg.WithOrderID(ctx, evt.OrderID.String())

	var errs error
	errs = multierr.Append(errs, c.step(ctx, "shipped_notification", eventID, func(ctx context.Context) error {
		c.notifier.NotifyUser(ctx, evt.BuyerID, notifications.Payload{
			Title:   "Order shipped",
			Message: "Your items are on the way.",
			Type:    enums.NotificationTypeOrderShipped,
			Link:    orderLink(evt.OrderID),
		})
		return nil
	}))
	errs = multierr.Append(errs, c.step(ctx, "shipped_emails", eventID, func(ctx context.Context) error {
		order, err := c.orders.FindOrder(ctx, evt.OrderID)
		if err != nil {
			return err
		}
		return c.emails.SendOrderShippedEmails(ctx, orderEmail(order, evt.SubOrderID, 0))
	}))
	return c.finish(ctx, "order_shipped", errs)
}

func (c *Consumer) handleCancelled(ctx context.Context, eventID uuid.UUID, evt *payloads.OrderCancelledEvent) error {
	ctx = c.logg.WithOrderID(ctx, evt.OrderID.String())

	var errs error
	errs = multierr.Append(errs, c.step(ctx, "cancelled_notifications", eventID, func(ctx context.Context) error {
		message := "Your order was cancelled."
		if evt.SubOrderID != nil {
			message = "Part of your order was cancelled."
		}
		if evt.RefundedCoins > 0 {
			message += fmt.Sprintf(" %d coins were returned to your wallet.", evt.RefundedCoins)
		}
		c.notifier.NotifyUser(ctx, evt.BuyerID, notifications.Payload{
			Title:   "Order cancelled",
			Message: message,
			Type:    enums.NotificationTypeOrderCancelled,
			Link:    orderLink(evt.OrderID),
		})
		if evt.SellerID != nil {
			c.notifier.NotifyUser(ctx, *evt.SellerID, notifications.Payload{
				Title:   "Order cancelled",
				Message: "An order containing your products was cancelled.",
				Type:    enums.NotificationTypeOrderCancelled,
				Link:    "/seller/sub-orders",
			})
		}
		return nil
	}))
	errs = multierr.Append(errs, c.step(ctx, "cancelled_emails", eventID, func(ctx context.Context) error {
		order, err := c.orders.FindOrder(ctx, evt.OrderID)
		if err != nil {
			return err
		}
		return c.emails.SendOrderCancelledEmails(ctx, orderEmail(order, evt.SubOrderID, evt.RefundedCoins))
	}))
	return c.finish(ctx, "order_cancelled", errs)
}

func (c *Consumer) finish(ctx context.Context, event string, errs error) error {
	if errs == nil {
		c.logg.Info(ctx, "settlement event handled")
		return nil
	}
	c.metrics.IncPostCommitFailure(event)
	c.logg.Error(c.logg.WithField(ctx, "alert", true), "settlement event step failed", errs)
	return errs
}

// orderEmail converts the order into email data, scoped to one sub-order when
// subOrderID is set.
func orderEmail(order *models.Order, subOrderID *uuid.UUID, refundedCoins int64) emails.OrderEmail {
	out := emails.OrderEmail{
		OrderID:       order.ID,
		BuyerID:       order.BuyerID,
		TotalPaise:    order.TotalPaise,
		RefundedCoins: refundedCoins,
	}
	for _, item := range order.Items {
		if subOrderID != nil && item.SubOrderID != *subOrderID {
			continue
		}
		out.Items = append(out.Items, emails.Item{
			SellerID:       item.SellerID,
			Title:          item.Title,
			Quantity:       item.Quantity,
			LineTotalPaise: item.LineTotalPaise,
		})
	}
	return out
}

func orderLink(orderID uuid.UUID) string {
	return "/orders/" + orderID.String()
}

func statusLabel(status enums.OrderStatus) string {
	switch status {
	case enums.OrderStatusApproveReturn:
		return "approved for return"
	case enums.OrderStatusProcessReturn:
		return "being returned"
	case enums.OrderStatusCompletedReturn:
		return "returned"
	case enums.OrderStatusRejectReturn:
		return "not eligible for return"
	default:
		return string(status)
	}
}
