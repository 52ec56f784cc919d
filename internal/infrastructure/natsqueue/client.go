// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

// Package natsqueue implements the scheduler's work pool on a JetStream
// work-queue stream. Each pool is one stream; workers claim runs through a
// durable consumer filtered on the pool's subject.
package natsqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/truecivic/parliament-service/internal/scheduler"
	"github.com/truecivic/parliament-service/pkg/constants"
	errs "github.com/truecivic/parliament-service/pkg/errors"
)

// Config holds the NATS connection settings.
type Config struct {
	URL           string
	Timeout       time.Duration
	MaxReconnect  int
	ReconnectWait time.Duration
}

// Queue is the JetStream-backed RunQueue.
type Queue struct {
	conn *nats.Conn
	js   jetstream.JetStream
}

// NewQueue connects to NATS and prepares the JetStream context.
func NewQueue(ctx context.Context, config Config) (*Queue, error) {
	if config.URL == "" {
		return nil, errs.NewValidation("NATS URL is required")
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.ReconnectWait <= 0 {
		config.ReconnectWait = 2 * time.Second
	}

	opts := []nats.Option{
		nats.Name(constants.ServiceName),
		nats.Timeout(config.Timeout),
		nats.MaxReconnects(config.MaxReconnect),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			slog.WarnContext(ctx, "NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.InfoContext(ctx, "NATS reconnected", "url", nc.ConnectedUrl())
		}),
	}

	conn, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, errs.NewServiceUnavailable("failed to connect to NATS", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, errs.NewUnexpected("failed to create JetStream context", err)
	}

	slog.InfoContext(ctx, "connected to NATS work pool",
		"url", config.URL,
	)
	return &Queue{conn: conn, js: js}, nil
}

// Close closes the connection; it does not drain it first.
func (q *Queue) Close() error {
	if q.conn != nil {
		q.conn.Close()
	}
	return nil
}

// IsReady implements the readiness probe.
func (q *Queue) IsReady(ctx context.Context) error {
	if q.conn == nil || !q.conn.IsConnected() || q.conn.IsDraining() {
		return errs.NewServiceUnavailable("NATS connection is not ready")
	}
	return nil
}

func streamName(poolTag string) string {
	return constants.WorkPoolStreamPrefix + "-" + strings.ToUpper(strings.ReplaceAll(poolTag, ".", "-"))
}

func subjectName(poolTag string) string {
	return fmt.Sprintf("%s.%s", constants.WorkPoolSubjectPrefix, poolTag)
}

// ensureStream creates the pool's work-queue stream when absent.
func (q *Queue) ensureStream(ctx context.Context, poolTag string) error {
	_, err := q.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      streamName(poolTag),
		Subjects:  []string{subjectName(poolTag)},
		Retention: jetstream.WorkQueuePolicy,
		Storage:   jetstream.FileStorage,
	})
	if err != nil {
		return errs.NewServiceUnavailable("failed to ensure work-pool stream", err)
	}
	return nil
}

// Publish enqueues a run request on its pool.
func (q *Queue) Publish(ctx context.Context, request scheduler.RunRequest) error {
	if err := q.ensureStream(ctx, request.PoolTag); err != nil {
		return err
	}

	payload, err := json.Marshal(request)
	if err != nil {
		return errs.NewUnexpected("failed to marshal run request", err)
	}

	if _, err := q.js.Publish(ctx, subjectName(request.PoolTag), payload); err != nil {
		return errs.NewServiceUnavailable("failed to publish run request", err)
	}

	slog.DebugContext(ctx, "run request published",
		"pool", request.PoolTag,
		"run_id", request.RunID,
	)
	return nil
}

// Consume delivers requests for the pool tag until the context is cancelled.
// Delivery is at-least-once; runs are acked after the handler returns.
func (q *Queue) Consume(ctx context.Context, poolTag string, handler func(context.Context, scheduler.RunRequest)) error {
	if err := q.ensureStream(ctx, poolTag); err != nil {
		return err
	}

	consumer, err := q.js.CreateOrUpdateConsumer(ctx, streamName(poolTag), jetstream.ConsumerConfig{
		Durable:       "worker-" + poolTag,
		AckPolicy:     jetstream.AckExplicitPolicy,
		FilterSubject: subjectName(poolTag),
		// Runs can be long; give the handler an hour before redelivery.
		AckWait: time.Hour,
	})
	if err != nil {
		return errs.NewServiceUnavailable("failed to create work-pool consumer", err)
	}

	consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
		var request scheduler.RunRequest
		if err := json.Unmarshal(msg.Data(), &request); err != nil {
			slog.ErrorContext(ctx, "dropping malformed run request", "error", err)
			_ = msg.Term()
			return
		}

		defer func() {
			if r := recover(); r != nil {
				slog.ErrorContext(ctx, "panic while executing run",
					"run_id", request.RunID,
					"panic", r,
				)
				_ = msg.Nak()
			}
		}()

		handler(ctx, request)
		_ = msg.Ack()
	})
	if err != nil {
		return errs.NewServiceUnavailable("failed to consume work pool", err)
	}
	defer consumeCtx.Stop()

	<-ctx.Done()
	return ctx.Err()
}
