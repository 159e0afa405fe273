package worker

import (
	"context"

	"product-service/internal/broker"
	"product-service/internal/models"
	"product-service/internal/util"

	"go.uber.org/zap"
)

// AuditWorker consumes product lifecycle events and writes an audit line
// for each of them.
type AuditWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewAuditWorker creates a new audit worker
func NewAuditWorker(consumer *broker.Consumer) *AuditWorker {
	w := &AuditWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		logger:       util.GetLogger(),
	}
	w.eventHandler.OnProductEvent(w.HandleProductEvent)
	return w
}

// Start blocks consuming events until ctx is cancelled
func (w *AuditWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting audit worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *AuditWorker) Stop() error {
	w.logger.Info("Stopping audit worker")
	return w.consumer.Close()
}

// HandleProductEvent records a single product event
func (w *AuditWorker) HandleProductEvent(ctx context.Context, event *models.ProductEvent) error {
	_, span := util.StartSpan(ctx, "AuditWorker.HandleProductEvent")
	defer span.End()

	util.AuditEventsConsumedTotal.WithLabelValues(event.EventType).Inc()

	w.logger.Info("Product audit",
		zap.String("event_id", event.EventID),
		zap.String("event_type", event.EventType),
		zap.Int64("product_id", event.ProductID),
		zap.String("sku", event.SKU),
		zap.Time("occurred_at", event.Timestamp))
	return nil
}
