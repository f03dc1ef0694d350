package address

import (
	"context"
	stdErrors "errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/haatbazaar/marketplace-backend/pkg/db/models"
	"github.com/haatbazaar/marketplace-backend/pkg/errors"
	"github.com/haatbazaar/marketplace-backend/pkg/types"
)

type Service interface {
	Create(ctx context.Context, userID uuid.UUID, input types.Address) (*models.Address, error)
	List(ctx context.Context, userID uuid.UUID) ([]models.Address, error)
	ResolveShipping(ctx context.Context, req ShippingRequest) (*Shipping, error)
}

// ShippingRequest carries either a saved address reference or inline details.
type ShippingRequest struct {
	UserID    uuid.UUID
	AddressID *uuid.UUID
	Inline    *types.Address
}

// Shipping is the resolved snapshot stored on an order.
type Shipping struct {
	AddressID *uuid.UUID
	Address   types.Address
}

type store interface {
	Create(ctx context.Context, address *models.Address) error
	FindForUser(ctx context.Context, userID, addressID uuid.UUID) (*models.Address, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Address, error)
}

type service struct {
	repo store
}

func NewService(repo store) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("address repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, input types.Address) (*models.Address, error) {
	input = normalize(input)
	if err := input.Validate(); err != nil {
		return nil, errors.Wrap(errors.CodeValidation, err, "invalid address")
	}
	row := &models.Address{
		UserID:     userID,
		Name:       input.Name,
		Phone:      input.Phone,
		Line1:      input.Line1,
		Line2:      input.Line2,
		City:       input.City,
		State:      input.State,
		PostalCode: input.PostalCode,
		Country:    input.Country,
	}
	if err := s.repo.Create(ctx, row); err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "create address")
	}
	return row, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	rows, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "list addresses")
	}
	return rows, nil
}

// ResolveShipping requires exactly one of a saved address or inline details.
func (s *service) ResolveShipping(ctx context.Context, req ShippingRequest) (*Shipping, error) {
	switch {
	case req.AddressID != nil && req.Inline != nil:
		return nil, errors.New(errors.CodeValidation, "provide either address_id or shipping_details, not both")
	case req.AddressID != nil:
		saved, err := s.repo.FindForUser(ctx, req.UserID, *req.AddressID)
		if err != nil {
			if stdErrors.Is(err, gorm.ErrRecordNotFound) {
				return nil, errors.New(errors.CodeValidation, "address not found")
			}
			return nil, errors.Wrap(errors.CodeDependency, err, "load address")
		}
		id := saved.ID
		return &Shipping{AddressID: &id, Address: normalize(saved.Snapshot())}, nil
	case req.Inline != nil:
		inline := normalize(*req.Inline)
		if err := inline.Validate(); err != nil {
			return nil, errors.Wrap(errors.CodeValidation, err, "invalid shipping details")
		}
		return &Shipping{Address: inline}, nil
	default:
		return nil, errors.New(errors.CodeValidation, "shipping address is required")
	}
}

func normalize(a types.Address) types.Address {
	a.Name = strings.TrimSpace(a.Name)
	a.Phone = strings.TrimSpace(a.Phone)
	a.Line1 = strings.TrimSpace(a.Line1)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.TrimSpace(a.State)
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	a.Country = strings.ToUpper(strings.TrimSpace(a.Country))
	if a.Country == "" {
		a.Country = "IN"
	}
	if a.Line2 != nil {
		trimmed := strings.TrimSpace(*a.Line2)
		if trimmed == "" {
			a.Line2 = nil
		} else {
			a.Line2 = &trimmed
		}
	}
	return a
}
