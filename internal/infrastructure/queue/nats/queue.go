package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/receipt-assistant/internal/core/domain"
	"github.com/kirillkom/receipt-assistant/internal/core/ports"
	"github.com/kirillkom/receipt-assistant/internal/infrastructure/resilience"
)

const catalogBuilderGroup = "catalog-builders"

// Subjects names every subject the service uses. Rebuild requests are
// load-balanced across workers; rebuilt notifications fan out to every API
// replica.
type Subjects struct {
	RebuildRequests  string
	CatalogRebuilt   string
	ReceiptValidated string
}

// SubjectsFor derives the catalog subjects from one prefix.
func SubjectsFor(catalogPrefix, receiptSubject string) Subjects {
	return Subjects{
		RebuildRequests:  catalogPrefix + ".rebuild",
		CatalogRebuilt:   catalogPrefix + ".rebuilt",
		ReceiptValidated: receiptSubject,
	}
}

// RebuildRequest asks a worker to rebuild the catalog from its source.
type RebuildRequest struct {
	Reason      string    `json:"reason,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

type Queue struct {
	conn     *nats.Conn
	subjects Subjects
	executor *resilience.Executor
}

var (
	_ ports.CatalogEvents = (*Queue)(nil)
	_ ports.ReceiptEvents = (*Queue)(nil)
)

type Options struct {
	Name                 string
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func New(url string, subjects Subjects) (*Queue, error) {
	return NewWithOptions(url, subjects, Options{})
}

func NewWithOptions(url string, subjects Subjects, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	name := options.Name
	if name == "" {
		name = "receipt-assistant"
	}

	conn, err := nats.Connect(
		url,
		nats.Name(name),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", errString(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:     conn,
		subjects: subjects,
		executor: options.ResilienceExecutor,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) RequestCatalogRebuild(ctx context.Context, reason string) error {
	return q.publishJSON(ctx, q.subjects.RebuildRequests, RebuildRequest{
		Reason:      reason,
		RequestedAt: time.Now().UTC(),
	})
}

func (q *Queue) PublishCatalogRebuilt(ctx context.Context, report domain.BuildReport) error {
	return q.publishJSON(ctx, q.subjects.CatalogRebuilt, report)
}

func (q *Queue) PublishReceiptValidated(ctx context.Context, event domain.ReceiptValidatedEvent) error {
	return q.publishJSON(ctx, q.subjects.ReceiptValidated, event)
}

// SubscribeRebuildRequests blocks until ctx is done. Each request is handled
// by exactly one worker of the group.
func (q *Queue) SubscribeRebuildRequests(ctx context.Context, handler func(context.Context, RebuildRequest) error) error {
	return q.consume(ctx, q.subjects.RebuildRequests, catalogBuilderGroup, func(handlerCtx context.Context, data []byte) error {
		var req RebuildRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return fmt.Errorf("decode rebuild request: %w", err)
		}
		return handler(handlerCtx, req)
	})
}

// SubscribeCatalogRebuilt blocks until ctx is done. Every subscriber sees every
// notification.
func (q *Queue) SubscribeCatalogRebuilt(ctx context.Context, handler func(context.Context, domain.BuildReport) error) error {
	return q.consume(ctx, q.subjects.CatalogRebuilt, "", func(handlerCtx context.Context, data []byte) error {
		var report domain.BuildReport
		if err := json.Unmarshal(data, &report); err != nil {
			return fmt.Errorf("decode catalog rebuilt event: %w", err)
		}
		return handler(handlerCtx, report)
	})
}

func (q *Queue) publishJSON(ctx context.Context, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", subject, err)
	}

	call := func(_ context.Context) error {
		if err := q.conn.Publish(subject, data); err != nil {
			return fmt.Errorf("nats publish %s: %w", subject, err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Execute(ctx, resilience.PublishOperation(subject), call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(subject, err)
	}
	return nil
}

func (q *Queue) consume(ctx context.Context, subject, group string, handler func(context.Context, []byte) error) error {
	onMsg := func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, msg.Data); err != nil {
			slog.Error("nats_handler_failed", "subject", subject, "error", err.Error())
		}
	}

	var (
		sub *nats.Subscription
		err error
	)
	if group != "" {
		sub, err = q.conn.QueueSubscribe(subject, group, onMsg)
	} else {
		sub, err = q.conn.Subscribe(subject, onMsg)
	}
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
