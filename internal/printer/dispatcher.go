// Package printer presents rendered receipts on a configured surface. A
// failed print is reported as a warning and never affects the sale.
package printer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tokopos/backend/internal/receipt"
)

const defaultTimeout = 15 * time.Second

// Outcome reports what happened to a print request.
type Outcome struct {
	Printed bool   `json:"printed"`
	Surface string `json:"surface"`
	Warning string `json:"warning,omitempty"`
}

type Dispatcher struct {
	surface Surface
	logger  *zap.Logger
	timeout time.Duration
}

func NewDispatcher(surface Surface, logger *zap.Logger) *Dispatcher {
	if surface == nil {
		surface = NullSurface{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{surface: surface, logger: logger, timeout: defaultTimeout}
}

func (d *Dispatcher) SurfaceName() string {
	return d.surface.Name()
}

// Dispatch acquires a job, writes doc and presents it. It never returns an
// error and never retries.
func (d *Dispatcher) Dispatch(ctx context.Context, doc receipt.Document) Outcome {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	outcome := Outcome{Surface: d.surface.Name()}
	if err := d.present(ctx, doc); err != nil {
		d.logger.Warn("receipt print failed",
			zap.String("sale_id", doc.SaleID),
			zap.String("surface", outcome.Surface),
			zap.Error(err),
		)
		outcome.Warning = fmt.Sprintf("receipt not printed: %v", err)
		return outcome
	}

	outcome.Printed = true
	return outcome
}

func (d *Dispatcher) present(ctx context.Context, doc receipt.Document) error {
	job, err := d.surface.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := job.Close(); cerr != nil {
			d.logger.Debug("close print job", zap.String("sale_id", doc.SaleID), zap.Error(cerr))
		}
	}()

	if err := job.Write(doc); err != nil {
		return err
	}
	return job.Present()
}
