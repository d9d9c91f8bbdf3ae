package store

import (
	"context"
	"errors"

	"github.com/itohio/humidistat/pkg/sample"
)

// Sink persists received samples.
type Sink interface {
	Append(ctx context.Context, s sample.Sample) error
	Close() error
}

// Multi fans samples out to several sinks.
type Multi []Sink

// Append writes s to every sink and joins their errors.
func (m Multi) Append(ctx context.Context, s sample.Sample) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Append(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink and joins their errors.
func (m Multi) Close() error {
	var errs []error
	for _, sink := range m {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
