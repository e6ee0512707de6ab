package pricing

import (
	"context"
	"fmt"
	"time"

	"ticketflow/internal/inventory"
	"ticketflow/internal/shared/apperrors"
	"ticketflow/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TicketCatalog provides ticket-type lookups for quoting. Satisfied by the
// inventory service.
type TicketCatalog interface {
	GetTicketTypes(ctx context.Context, ids []uuid.UUID) ([]inventory.TicketType, error)
}

// PurchaseHistory answers the first-time-buyer question. Implemented by the
// bookings module and wired at startup; a narrow interface so pricing never
// imports booking code.
type PurchaseHistory interface {
	HasPriorPaidBooking(ctx context.Context, userID uuid.UUID) (bool, error)
}

// DiscountContext is everything the validation gauntlet needs to judge a
// code against one checkout.
type DiscountContext struct {
	UserID        uuid.UUID
	EventID       uuid.UUID
	TicketTypeIDs []uuid.UUID
	Subtotal      decimal.Decimal
}

// DiscountResult is a validated, priced discount ready to be redeemed.
type DiscountResult struct {
	Code   *DiscountCode
	Amount decimal.Decimal
}

// Service is the pricing engine: deterministic quote computation plus the
// discount validation/redemption pair. Quotes are pure reads; only Redeem
// and Release mutate state.
type Service interface {
	PriceItems(ctx context.Context, items []RequestedItem) (*Quote, error)
	ApplyDiscount(ctx context.Context, code string, dctx DiscountContext) (*DiscountResult, error)
	RedeemDiscount(ctx context.Context, discountCodeID, userID, bookingID uuid.UUID, amount decimal.Decimal) error
	ReleaseDiscount(ctx context.Context, bookingID uuid.UUID) error

	ValidateDiscount(ctx context.Context, userID uuid.UUID, req ValidateDiscountRequest) (*DiscountPreviewResponse, error)

	SetPurchaseHistory(history PurchaseHistory)
}

type service struct {
	repo    Repository
	catalog TicketCatalog
	history PurchaseHistory
	logger  *logger.Logger
}

func NewService(repo Repository, catalog TicketCatalog, log *logger.Logger) Service {
	return &service{
		repo:    repo,
		catalog: catalog,
		logger:  log,
	}
}

func (s *service) SetPurchaseHistory(history PurchaseHistory) {
	s.history = history
}

// PriceItems resolves the effective unit price (early-bird aware), flat
// service fee and tax for every requested line and returns aggregate totals.
// No inventory is touched; the quote is a pure function of catalog state and
// the clock.
func (s *service) PriceItems(ctx context.Context, items []RequestedItem) (*Quote, error) {
	if len(items) == 0 {
		return nil, apperrors.NewValidationError("at least one item is required")
	}

	ids := make([]uuid.UUID, 0, len(items))
	seen := make(map[uuid.UUID]bool, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, apperrors.NewValidationError("item quantity must be positive")
		}
		if seen[item.TicketTypeID] {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("duplicate ticket type %s in request", item.TicketTypeID))
		}
		seen[item.TicketTypeID] = true
		ids = append(ids, item.TicketTypeID)
	}

	ticketTypes, err := s.catalog.GetTicketTypes(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]*inventory.TicketType, len(ticketTypes))
	for i := range ticketTypes {
		byID[ticketTypes[i].ID] = &ticketTypes[i]
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, &apperrors.NotFoundError{Resource: "ticket type", ID: id.String()}
		}
	}

	return buildQuote(items, byID, time.Now()), nil
}

// ApplyDiscount runs the full eligibility gauntlet for a code against one
// checkout. Every rejection is a DiscountInvalidError with a distinct reason
// so clients can tell "expired" from "below minimum". Nothing is redeemed
// here; callers redeem only after the booking row exists.
func (s *service) ApplyDiscount(ctx context.Context, code string, dctx DiscountContext) (*DiscountResult, error) {
	discountCode, err := s.repo.GetCodeByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	now := time.Now()

	if !discountCode.IsActive {
		return nil, &apperrors.DiscountInvalidError{
			Code: discountCode.Code, Reason: apperrors.DiscountNotApplicable, Message: "code is not active",
		}
	}
	if now.Before(discountCode.ValidFrom) {
		return nil, &apperrors.DiscountInvalidError{
			Code: discountCode.Code, Reason: apperrors.DiscountExpired, Message: "code is not valid yet",
		}
	}
	if now.After(discountCode.ValidUntil) {
		return nil, &apperrors.DiscountInvalidError{
			Code: discountCode.Code, Reason: apperrors.DiscountExpired, Message: "code has expired",
		}
	}
	if discountCode.IsExhausted() {
		return nil, &apperrors.DiscountInvalidError{
			Code: discountCode.Code, Reason: apperrors.DiscountUsageExhausted, Message: "usage limit reached",
		}
	}

	if discountCode.PerUserLimit > 0 {
		used, err := s.repo.CountRedemptions(ctx, discountCode.ID, dctx.UserID)
		if err != nil {
			return nil, err
		}
		if used >= int64(discountCode.PerUserLimit) {
			return nil, &apperrors.DiscountInvalidError{
				Code: discountCode.Code, Reason: apperrors.DiscountUsageExhausted, Message: "per-user limit reached",
			}
		}
	}

	if dctx.Subtotal.LessThan(discountCode.MinOrderAmount) {
		return nil, &apperrors.DiscountInvalidError{
			Code:   discountCode.Code,
			Reason: apperrors.DiscountBelowMinimum,
			Message: fmt.Sprintf("minimum order amount is %s",
				discountCode.MinOrderAmount.StringFixed(2)),
		}
	}

	if discountCode.EventID != nil && *discountCode.EventID != dctx.EventID {
		return nil, &apperrors.DiscountInvalidError{
			Code: discountCode.Code, Reason: apperrors.DiscountNotApplicable, Message: "not valid for this event",
		}
	}
	if discountCode.TicketTypeID != nil && !containsUUID(dctx.TicketTypeIDs, *discountCode.TicketTypeID) {
		return nil, &apperrors.DiscountInvalidError{
			Code: discountCode.Code, Reason: apperrors.DiscountNotApplicable, Message: "not valid for these ticket types",
		}
	}

	if discountCode.FirstTimeBuyersOnly && s.history != nil {
		hasPaid, err := s.history.HasPriorPaidBooking(ctx, dctx.UserID)
		if err != nil {
			return nil, err
		}
		if hasPaid {
			return nil, &apperrors.DiscountInvalidError{
				Code: discountCode.Code, Reason: apperrors.DiscountNotApplicable, Message: "first-time buyers only",
			}
		}
	}

	return &DiscountResult{
		Code:   discountCode,
		Amount: discountCode.CalculateDiscount(dctx.Subtotal),
	}, nil
}

func (s *service) RedeemDiscount(ctx context.Context, discountCodeID, userID, bookingID uuid.UUID, amount decimal.Decimal) error {
	return s.repo.Redeem(ctx, discountCodeID, userID, bookingID, amount)
}

func (s *service) ReleaseDiscount(ctx context.Context, bookingID uuid.UUID) error {
	return s.repo.ReleaseByBooking(ctx, bookingID)
}

// ValidateDiscount is the preview endpoint's workhorse: price the items, run
// the gauntlet, and report what the code would take off, without redeeming.
func (s *service) ValidateDiscount(ctx context.Context, userID uuid.UUID, req ValidateDiscountRequest) (*DiscountPreviewResponse, error) {
	quote, err := s.PriceItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(req.Items))
	for _, item := range req.Items {
		ids = append(ids, item.TicketTypeID)
	}

	result, err := s.ApplyDiscount(ctx, req.Code, DiscountContext{
		UserID:        userID,
		EventID:       req.EventID,
		TicketTypeIDs: ids,
		Subtotal:      quote.Subtotal,
	})
	if err != nil {
		return nil, err
	}

	quote.DiscountAmount = result.Amount
	return &DiscountPreviewResponse{
		Code:           result.Code.Code,
		DiscountType:   result.Code.Type,
		Value:          result.Code.Value,
		Subtotal:       quote.Subtotal,
		ServiceFees:    quote.ServiceFees,
		Tax:            quote.Tax,
		DiscountAmount: result.Amount,
		Total:          quote.Total(),
	}, nil
}

func containsUUID(ids []uuid.UUID, target uuid.UUID) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}
