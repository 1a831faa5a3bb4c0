package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/usherhq/invitation-core/internal/adapters/rabbit"
	"github.com/usherhq/invitation-core/internal/checkout"
	"github.com/usherhq/invitation-core/internal/config"
	"github.com/usherhq/invitation-core/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()

	consumer, err := rabbit.NewConsumer(conn, "notifications.q")
	if err != nil {
		log.Fatalf("failed to create consumer: %v", err)
	}

	worker := NewNotifier(consumer, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go worker.Run(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown notifier")
}

type Notifier struct {
	consumer *rabbit.Consumer
	logger   observability.Logger
}

func NewNotifier(consumer *rabbit.Consumer, logger observability.Logger) *Notifier {
	return &Notifier{consumer: consumer, logger: logger}
}

func (n *Notifier) Run(ctx context.Context) {
	deliveries, err := n.consumer.Consume(ctx)
	if err != nil {
		n.logger.WithError(err).Error("failed to start consuming")
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			if err := n.handleWithRetry(ctx, d); err != nil {
				n.logger.WithError(err).Error("failed to process event after retries")
				d.Nack(false, false)
				continue
			}
			d.Ack(false)
		}
	}
}

func (n *Notifier) handleWithRetry(ctx context.Context, d amqp.Delivery) error {
	maxRetries := 3
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		if lastErr = n.handle(d); lastErr == nil {
			return nil
		}
		backoff := time.Duration(1<<i) * time.Second
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return lastErr
}

func (n *Notifier) handle(d amqp.Delivery) error {
	var evt checkout.TerminalEvent
	if err := json.Unmarshal(d.Body, &evt); err != nil {
		return err
	}

	entry := n.logger.
		WithField("checkout_id", evt.CheckoutID).
		WithField("event_ref", evt.EventRef).
		WithField("state", string(evt.State))

	switch evt.State {
	case checkout.StateSucceeded:
		entry.WithField("payment_id", evt.PaymentID).Info("checkout succeeded, tickets issued")
	case checkout.StateTimedOut:
		entry.Warn("checkout timed out awaiting payment confirmation")
	default:
		entry.Info("checkout finished")
	}
	return nil
}
