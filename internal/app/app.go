// Package app wires a BookingService to its store, its collaborators and
// the booking events exchange.
package app

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/iliyamo/rental-booking/internal/config"
	"github.com/iliyamo/rental-booking/internal/queue"
	"github.com/iliyamo/rental-booking/internal/repository"
	"github.com/iliyamo/rental-booking/internal/service"
)

type notifierCloser interface {
	service.Notifier
	io.Closer
}

// dialNotifier connects the lifecycle notifier. Tests replace it.
var dialNotifier = func(cfg config.Config, lg *zap.Logger) (notifierCloser, error) {
	p, err := queue.NewPublisher(cfg.RabbitURL, cfg.EventExchange, cfg.PublishTimeout, lg)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// New returns a BookingService that publishes its lifecycle events to
// cfg.EventExchange. The returned closer releases the broker connection
// and must be called once the service is no longer used.
func New(cfg config.Config, store repository.BookingStore, pay service.PaymentGateway, inv service.Inventory, lg *zap.Logger) (*service.BookingService, io.Closer, error) {
	if store == nil || pay == nil || inv == nil {
		return nil, nil, fmt.Errorf("app: store, payment gateway and inventory are required")
	}
	if lg == nil {
		lg = zap.NewNop()
	}
	notifier, err := dialNotifier(cfg, lg.Named("publisher"))
	if err != nil {
		return nil, nil, fmt.Errorf("booking events publisher: %w", err)
	}
	svc := service.NewBookingService(store, pay, inv, notifier, lg.Named("booking"))
	lg.Info("booking service ready",
		zap.String("exchange", cfg.EventExchange),
		zap.Duration("publish_timeout", cfg.PublishTimeout),
	)
	return svc, notifier, nil
}
