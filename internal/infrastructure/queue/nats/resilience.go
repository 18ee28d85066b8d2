package nats

import (
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/receipt-assistant/internal/core/domain"
	"github.com/kirillkom/receipt-assistant/internal/infrastructure/resilience"
)

// classifyNATSError retries connection loss and publish timeouts. A payload or
// subject the server refuses is a caller fault and does not trip the breaker of
// its subject.
func classifyNATSError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, nats.ErrNoServers),
		errors.Is(err, nats.ErrTimeout),
		errors.Is(err, nats.ErrConnectionClosed),
		errors.Is(err, nats.ErrDisconnected),
		errors.Is(err, nats.ErrConnectionReconnecting):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	case errors.Is(err, nats.ErrMaxPayload),
		errors.Is(err, nats.ErrBadSubject),
		errors.Is(err, nats.ErrInvalidMsg):
		return resilience.ErrorClassification{}
	default:
		return resilience.ClassifyDomainError(err)
	}
}

// wrapTemporaryIfNeeded marks retryable publish failures on subject as
// ErrTemporary, so a rebuild request can answer 503 instead of 500.
func wrapTemporaryIfNeeded(subject string, err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifyNATSError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, "publish "+subject, err)
	}
	return err
}
