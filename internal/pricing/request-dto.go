package pricing

import (
	"github.com/google/uuid"
)

// ValidateDiscountRequest previews a discount code against a prospective
// checkout without redeeming it.
type ValidateDiscountRequest struct {
	Code    string          `json:"code" binding:"required"`
	EventID uuid.UUID       `json:"event_id" binding:"required"`
	Items   []RequestedItem `json:"items" binding:"required,min=1,dive"`
}
