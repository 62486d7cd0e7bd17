package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/lovdata-assistant/internal/infrastructure/resilience"
)

const workerQueueGroup = "archive-workers"

// archiveUploadedEvent is the message body on the archive subject.
type archiveUploadedEvent struct {
	ArchiveFilename string    `json:"archive_filename"`
	UploadedAt      time.Time `json:"uploaded_at"`
}

type Queue struct {
	conn           *nats.Conn
	subject        string
	executor       *resilience.Executor
	handlerTimeout time.Duration
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	// HandlerTimeout bounds one archive processing run; zero means no extra deadline.
	HandlerTimeout     time.Duration
	ResilienceExecutor *resilience.Executor
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
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

	conn, err := nats.Connect(
		url,
		nats.Name("lovdata-assistant"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:           conn,
		subject:        subject,
		executor:       options.ResilienceExecutor,
		handlerTimeout: options.HandlerTimeout,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishArchiveUploaded(ctx context.Context, archiveFilename string) error {
	payload, err := encodeArchiveUploaded(archiveFilename, time.Now().UTC())
	if err != nil {
		return err
	}
	call := func(_ context.Context) error {
		if err := q.conn.Publish(q.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if err := resilience.Run(ctx, q.executor, "nats.publish", call, classifyNATSError); err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

// SubscribeArchiveUploaded blocks until ctx is canceled. Messages are handled
// synchronously on the subscription goroutine, one archive at a time per worker.
func (q *Queue) SubscribeArchiveUploaded(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, workerQueueGroup, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		filename, err := decodeArchiveUploaded(msg.Data)
		if err != nil {
			slog.Warn("archive_event_invalid", "subject", msg.Subject, "error", err)
			return
		}

		handlerCtx, cancel := q.handlerContext(ctx)
		defer cancel()
		if err := handler(handlerCtx, filename); err != nil {
			slog.Error("archive_event_handler_failed", "archive", filename, "error", err)
		}
	})
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
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func (q *Queue) handlerContext(parent context.Context) (context.Context, context.CancelFunc) {
	if q.handlerTimeout > 0 {
		return context.WithTimeout(parent, q.handlerTimeout)
	}
	return context.WithCancel(parent)
}

func encodeArchiveUploaded(archiveFilename string, at time.Time) ([]byte, error) {
	if strings.TrimSpace(archiveFilename) == "" {
		return nil, errors.New("archive filename is empty")
	}
	payload, err := json.Marshal(archiveUploadedEvent{ArchiveFilename: archiveFilename, UploadedAt: at})
	if err != nil {
		return nil, fmt.Errorf("marshal archive event: %w", err)
	}
	return payload, nil
}

// decodeArchiveUploaded also accepts a bare filename body published by older producers.
func decodeArchiveUploaded(data []byte) (string, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return "", errors.New("empty archive event")
	}
	if !strings.HasPrefix(trimmed, "{") {
		return trimmed, nil
	}
	var event archiveUploadedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return "", fmt.Errorf("decode archive event: %w", err)
	}
	if strings.TrimSpace(event.ArchiveFilename) == "" {
		return "", errors.New("archive event has no filename")
	}
	return event.ArchiveFilename, nil
}
