package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger wraps slog.Logger with additional functionality
type Logger struct {
	*slog.Logger
}

// New creates a new logger instance
func New() *Logger {
	level := getLogLevel(os.Getenv("LOG_LEVEL"))

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	// Text handler for development, JSON for production
	var handler slog.Handler
	if gin.Mode() == gin.DebugMode {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// getLogLevel converts string to slog.Level
func getLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithRequestID adds request ID to logger context
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{
		Logger: l.Logger.With(slog.String("request_id", requestID)),
	}
}

// WithUserID adds user ID to logger context
func (l *Logger) WithUserID(userID string) *Logger {
	return &Logger{
		Logger: l.Logger.With(slog.String("user_id", userID)),
	}
}

// WithError adds error to logger context
func (l *Logger) WithError(err error) *Logger {
	return &Logger{
		Logger: l.Logger.With(slog.String("error", err.Error())),
	}
}

// WithFields adds multiple fields to logger context
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, slog.Any(k, v))
	}
	return &Logger{
		Logger: l.Logger.With(args...),
	}
}

// HTTP logging methods

// LogHTTPRequest logs an HTTP request
func (l *Logger) LogHTTPRequest(c *gin.Context, duration time.Duration) {
	l.Logger.InfoContext(c.Request.Context(),
		"HTTP Request",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("query", c.Request.URL.RawQuery),
		slog.Int("status", c.Writer.Status()),
		slog.Duration("duration", duration),
		slog.String("ip", c.ClientIP()),
		slog.String("user_agent", c.Request.UserAgent()),
		slog.Int("size", c.Writer.Size()),
	)
}

// LogHTTPError logs an HTTP error
func (l *Logger) LogHTTPError(c *gin.Context, err error, statusCode int) {
	l.Logger.ErrorContext(c.Request.Context(),
		"HTTP Error",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.Int("status", statusCode),
		slog.String("error", err.Error()),
		slog.String("ip", c.ClientIP()),
	)
}

// Business logic logging methods

// LogBookingCreated logs when a booking enters the pending state
func (l *Logger) LogBookingCreated(ctx context.Context, bookingRef, eventID, userID string) {
	l.Logger.InfoContext(ctx,
		"Booking Created",
		slog.String("booking_reference", bookingRef),
		slog.String("event_id", eventID),
		slog.String("user_id", userID),
	)
}

// LogBookingExpired logs when the expiration sweep releases a booking
func (l *Logger) LogBookingExpired(ctx context.Context, bookingRef string) {
	l.Logger.InfoContext(ctx,
		"Booking Expired",
		slog.String("booking_reference", bookingRef),
	)
}

// LogBookingCancelled logs when a booking is cancelled
func (l *Logger) LogBookingCancelled(ctx context.Context, bookingRef, cancelledBy string) {
	l.Logger.InfoContext(ctx,
		"Booking Cancelled",
		slog.String("booking_reference", bookingRef),
		slog.String("cancelled_by", cancelledBy),
	)
}

// LogInventoryRejection logs a reservation attempt that exceeded availability
func (l *Logger) LogInventoryRejection(ctx context.Context, ticketTypeID string, requested, available int) {
	l.Logger.WarnContext(ctx,
		"Reservation Rejected",
		slog.String("ticket_type_id", ticketTypeID),
		slog.Int("requested", requested),
		slog.Int("available", available),
	)
}

// LogPaymentCompleted logs a payment reaching its completed state
func (l *Logger) LogPaymentCompleted(ctx context.Context, txnRef, bookingRef string, amount string) {
	l.Logger.InfoContext(ctx,
		"Payment Completed",
		slog.String("transaction_reference", txnRef),
		slog.String("booking_reference", bookingRef),
		slog.String("amount", amount),
	)
}

// LogPaymentFailed logs a payment failure with its gateway reason
func (l *Logger) LogPaymentFailed(ctx context.Context, txnRef, reason string, retryCount int) {
	l.Logger.WarnContext(ctx,
		"Payment Failed",
		slog.String("transaction_reference", txnRef),
		slog.String("reason", reason),
		slog.Int("retry_count", retryCount),
	)
}

// LogSettlementCreated logs a completed organizer settlement
func (l *Logger) LogSettlementCreated(ctx context.Context, txnRef, settlementRef string, netAmount string) {
	l.Logger.InfoContext(ctx,
		"Settlement Created",
		slog.String("transaction_reference", txnRef),
		slog.String("settlement_reference", settlementRef),
		slog.String("net_amount", netAmount),
	)
}

// LogTicketsIssued logs ticket materialization for a paid booking
func (l *Logger) LogTicketsIssued(ctx context.Context, bookingRef string, count int) {
	l.Logger.InfoContext(ctx,
		"Tickets Issued",
		slog.String("booking_reference", bookingRef),
		slog.Int("count", count),
	)
}

// LogTicketCheckedIn logs a gate check-in
func (l *Logger) LogTicketCheckedIn(ctx context.Context, ticketCode, location, checkedInBy string) {
	l.Logger.InfoContext(ctx,
		"Ticket Checked In",
		slog.String("ticket_code", ticketCode),
		slog.String("location", location),
		slog.String("checked_in_by", checkedInBy),
	)
}

// LogWaitlistNotified logs a waitlist availability notification batch
func (l *Logger) LogWaitlistNotified(ctx context.Context, ticketTypeID string, notified int) {
	l.Logger.InfoContext(ctx,
		"Waitlist Notified",
		slog.String("ticket_type_id", ticketTypeID),
		slog.Int("notified", notified),
	)
}

// LogRateLimitExceeded logs rate limit exceeded
func (l *Logger) LogRateLimitExceeded(ctx context.Context, ip, endpoint string) {
	l.Logger.WarnContext(ctx,
		"Rate Limit Exceeded",
		slog.String("ip", ip),
		slog.String("endpoint", endpoint),
	)
}

// Helper methods for common patterns

// InfoWithContext logs an info message with context
func (l *Logger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, slog.Any(k, v))
	}
	l.Logger.InfoContext(ctx, msg, args...)
}

// ErrorWithContext logs an error message with context
func (l *Logger) ErrorWithContext(ctx context.Context, msg string, err error, fields map[string]interface{}) {
	args := make([]interface{}, 0, len(fields)*2+2)
	args = append(args, slog.String("error", err.Error()))
	for k, v := range fields {
		args = append(args, slog.Any(k, v))
	}
	l.Logger.ErrorContext(ctx, msg, args...)
}

// DebugWithContext logs a debug message with context
func (l *Logger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, slog.Any(k, v))
	}
	l.Logger.DebugContext(ctx, msg, args...)
}

// Global logger instance (can be replaced with dependency injection)
var defaultLogger = New()

// GetDefault returns the default logger instance
func GetDefault() *Logger {
	return defaultLogger
}

// SetDefault sets the default logger instance
func SetDefault(logger *Logger) {
	defaultLogger = logger
}
