package constants

import (
	"fmt"
	"time"
)

// Redis Cache Configuration
// This file centralizes all Redis cache keys and TTL values for the Ticketflow application
// Pattern: ticketflow:{module}:{operation}:{identifier}:{params?}

// ================== CACHE TTL DURATIONS ==================

// Semi-Static Data (Medium TTL: changes occasionally)
const (
	TTL_SEMI_STATIC_MEDIUM = 2 * time.Hour    // 2 hours - for ticket-type catalog details
	TTL_SEMI_STATIC_QUICK  = 15 * time.Minute // 15 minutes - for event sale summaries
)

// Dynamic Data (Short TTL: changes frequently)
const (
	TTL_DYNAMIC_MEDIUM = 10 * time.Minute // 10 minutes - for user booking lists
	TTL_DYNAMIC_SHORT  = 5 * time.Minute  // 5 minutes - for booking details
)

// Highly Dynamic (Micro TTL: real-time sensitive)
const (
	TTL_REALTIME_MEDIUM = 1 * time.Minute  // 1 minute - for waitlist positions
	TTL_REALTIME_SHORT  = 30 * time.Second // 30 seconds - for live availability counts
)

// Guard entries (idempotency markers, not caches)
const (
	TTL_WEBHOOK_GUARD = 24 * time.Hour // webhook replay suppression window
)

// ================== REDIS KEY PREFIXES ==================

const (
	CACHE_PREFIX = "ticketflow"
)

// ================== INVENTORY MODULE ==================

const (
	CACHE_KEY_AVAILABILITY      = CACHE_PREFIX + ":inventory:availability:uuid:" // + ticket-type-id
	CACHE_KEY_EVENT_TICKET_TYPE = CACHE_PREFIX + ":inventory:event:uuid:"        // + event-id
)

const (
	TTL_AVAILABILITY      = TTL_REALTIME_SHORT     // 30 seconds
	TTL_EVENT_TICKET_TYPE = TTL_SEMI_STATIC_MEDIUM // 2 hours
)

// ================== BOOKINGS MODULE ==================

const (
	CACHE_KEY_USER_BOOKINGS  = CACHE_PREFIX + ":bookings:user:uuid:"  // + user-id:page:X
	CACHE_KEY_BOOKING_DETAIL = CACHE_PREFIX + ":bookings:detail:ref:" // + booking-reference
)

const (
	TTL_USER_BOOKINGS  = TTL_DYNAMIC_MEDIUM // 10 minutes
	TTL_BOOKING_DETAIL = TTL_DYNAMIC_SHORT  // 5 minutes
)

// ================== PAYMENTS MODULE ==================

const (
	// SETNX markers keyed by webhook identity; presence means "already processed"
	CACHE_KEY_WEBHOOK_GUARD = CACHE_PREFIX + ":payments:webhook:guard:" // + txn-ref:gateway-txn-id:status
)

// ================== WAITLIST MODULE ==================

const (
	CACHE_KEY_WAITLIST_POSITION = CACHE_PREFIX + ":waitlist:position:tt:" // + ticket-type-id:user:user-id
)

const (
	TTL_WAITLIST_POSITION = TTL_REALTIME_MEDIUM // 1 minute
)

// ================== CACHE INVALIDATION PATTERNS ==================

// Patterns for cache invalidation (used with Redis KEYS command or manual invalidation)
const (
	PATTERN_INVALIDATE_INVENTORY_ALL = CACHE_PREFIX + ":inventory:*"
	PATTERN_INVALIDATE_BOOKINGS_USER = CACHE_PREFIX + ":bookings:user:uuid:" // + user-id + *
	PATTERN_INVALIDATE_WAITLIST_ALL  = CACHE_PREFIX + ":waitlist:*"
)

// ================== HELPER FUNCTIONS ==================

func BuildAvailabilityKey(ticketTypeID string) string {
	return CACHE_KEY_AVAILABILITY + ticketTypeID
}

func BuildEventTicketTypesKey(eventID string) string {
	return CACHE_KEY_EVENT_TICKET_TYPE + eventID
}

func BuildUserBookingsKey(userID string, page int) string {
	return CACHE_KEY_USER_BOOKINGS + userID + ":page:" + fmt.Sprintf("%d", page)
}

func BuildBookingDetailKey(reference string) string {
	return CACHE_KEY_BOOKING_DETAIL + reference
}

func BuildWebhookGuardKey(txnRef, gatewayTxnID, status string) string {
	return CACHE_KEY_WEBHOOK_GUARD + txnRef + ":" + gatewayTxnID + ":" + status
}

func BuildWaitlistPositionKey(ticketTypeID, userID string) string {
	return CACHE_KEY_WAITLIST_POSITION + ticketTypeID + ":user:" + userID
}
