package emails

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/haatbazaar/marketplace-backend/internal/users"
	"github.com/haatbazaar/marketplace-backend/pkg/logger"
	"github.com/haatbazaar/marketplace-backend/pkg/mailer"
)

// Item is one order line as shown in an email.
type Item struct {
	SellerID       uuid.UUID
	Title          string
	Quantity       int
	LineTotalPaise int64
}

// OrderEmail is the order data an email is rendered from. For shipped and
// cancelled mails Items holds only the affected sub-order's lines.
type OrderEmail struct {
	OrderID       uuid.UUID
	BuyerID       uuid.UUID
	TotalPaise    int64
	Items         []Item
	RefundedCoins int64
}

type contactDirectory interface {
	Contacts(ctx context.Context, ids []uuid.UUID) ([]users.Contact, error)
}

// Service sends the order lifecycle emails to the buyer and every affected seller.
type Service interface {
	SendOrderPlacedEmails(ctx context.Context, order OrderEmail) error
	SendOrderShippedEmails(ctx context.Context, order OrderEmail) error
	SendOrderCancelledEmails(ctx context.Context, order OrderEmail) error
}

type service struct {
	renderer  *Renderer
	sender    mailer.Sender
	directory contactDirectory
	logg      *logger.Logger
}

func NewService(renderer *Renderer, sender mailer.Sender, directory contactDirectory, logg *logger.Logger) (Service, error) {
	if renderer == nil {
		return nil, fmt.Errorf("email renderer required")
	}
	if sender == nil {
		return nil, fmt.Errorf("mail sender required")
	}
	if directory == nil {
		return nil, fmt.Errorf("contact directory required")
	}
	return &service{renderer: renderer, sender: sender, directory: directory, logg: logg}, nil
}

func (s *service) SendOrderPlacedEmails(ctx context.Context, order OrderEmail) error {
	return s.send(ctx, KindOrderPlaced, order)
}

func (s *service) SendOrderShippedEmails(ctx context.Context, order OrderEmail) error {
	return s.send(ctx, KindOrderShipped, order)
}

func (s *service) SendOrderCancelledEmails(ctx context.Context, order OrderEmail) error {
	return s.send(ctx, KindOrderCancelled, order)
}

// send mails the buyer every line and each seller its own lines. Every
// recipient is attempted; failures are combined.
func (s *service) send(ctx context.Context, kind Kind, order OrderEmail) error {
	sellerIDs, bySeller := groupBySeller(order.Items)
	ids := append([]uuid.UUID{order.BuyerID}, sellerIDs...)
	contacts, err := s.directory.Contacts(ctx, ids)
	if err != nil {
		return err
	}

	var errs error
	for _, contact := range contacts {
		view := View{
			RecipientName: contact.Name,
			OrderID:       order.OrderID.String(),
			RefundedCoins: order.RefundedCoins,
		}
		if contact.UserID == order.BuyerID {
			view.Items = toViewItems(order.Items)
			view.TotalPaise = order.TotalPaise
			view.ShowTotal = kind == KindOrderPlaced
		} else {
			view.ForSeller = true
			view.Items = toViewItems(bySeller[contact.UserID])
		}

		subject, body, err := s.renderer.Render(kind, view)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if err := s.sender.Send(ctx, mailer.Message{To: contact.Email, Subject: subject, HTMLBody: body}); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("send %s to %s: %w", kind, contact.UserID, err))
		}
	}
	if errs != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "email_kind", string(kind)), errs.Error())
	}
	return errs
}

func groupBySeller(items []Item) ([]uuid.UUID, map[uuid.UUID][]Item) {
	var order []uuid.UUID
	out := make(map[uuid.UUID][]Item)
	for _, item := range items {
		if _, ok := out[item.SellerID]; !ok {
			order = append(order, item.SellerID)
		}
		out[item.SellerID] = append(out[item.SellerID], item)
	}
	return order, out
}

func toViewItems(items []Item) []Item {
	if items == nil {
		return []Item{}
	}
	return items
}
