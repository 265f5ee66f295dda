package worker

import (
	"context"

	"backoffice-api/internal/broker"
	"backoffice-api/internal/models"
	"backoffice-api/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageSource delivers messages to a handler until ctx ends
type MessageSource interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// StockLowHandler reacts to products falling below their reorder level
type StockLowHandler interface {
	HandleStockLow(ctx context.Context, event *models.StockLowEvent) error
}

// RestockWorker consumes order events and raises restock alerts
type RestockWorker struct {
	source       MessageSource
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewRestockWorker creates a new restock worker
func NewRestockWorker(source MessageSource, restock StockLowHandler) *RestockWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnStockLow(restock.HandleStockLow)

	return &RestockWorker{
		source:       source,
		eventHandler: eventHandler,
		logger:       util.GetLogger(),
	}
}

// Start blocks until ctx is cancelled
func (w *RestockWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting restock worker")
	return w.source.StartConsuming(ctx, w.handle)
}

// Stop stops the worker
func (w *RestockWorker) Stop() error {
	w.logger.Info("Stopping restock worker")
	return w.source.Close()
}

func (w *RestockWorker) handle(ctx context.Context, msg kafka.Message) error {
	ctx, span := util.StartSpan(ctx, "RestockWorker.handle")
	defer span.End()

	err := w.eventHandler.HandleMessage(ctx, msg)
	util.RecordError(span, err)
	return err
}
