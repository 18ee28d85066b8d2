package resilience

import (
	"context"
	"errors"

	"github.com/kirillkom/receipt-assistant/internal/core/domain"
)

// OracleOperation names the breaker guarding a text-generation oracle.
func OracleOperation(provider string) string { return "receipt.oracle." + provider }

// EmbedOperation names the breaker guarding an embedding backend.
func EmbedOperation(provider string) string { return "catalog.embed." + provider }

// PublishOperation names the breaker guarding one message subject, so a stuck
// receipt stream does not hold back catalog announcements.
func PublishOperation(subject string) string { return "nats.publish." + subject }

// ClassifyDomainError maps domain error kinds onto retry and breaker decisions.
// Invalid input, unparseable oracle output and shape mismatches are never
// retried and never trip a breaker.
func ClassifyDomainError(err error) ErrorClassification {
	switch {
	case err == nil:
		return ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorClassification{}
	case domain.IsKind(err, domain.ErrInvalidInput),
		domain.IsKind(err, domain.ErrOracleParse),
		domain.IsKind(err, domain.ErrShape):
		return ErrorClassification{}
	case domain.IsKind(err, domain.ErrTemporary), IsCircuitOpen(err):
		return ErrorClassification{Retryable: true, RecordFailure: true}
	default:
		return ErrorClassification{RecordFailure: true}
	}
}
