/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package input

import (
	"context"
	"errors"
	"github.com/traas-stack/holoinsight-ingest/pkg/model"
	"sync"
	"sync/atomic"
)

var (
	// ErrReaderReused is returned when Read is called twice on the same reader.
	// A reader is restarted by building a new one from its factory.
	ErrReaderReused = errors.New("reader already used, build a new one to restart")
)

type (
	// Emit hands one reading to the pipeline. It never blocks for long.
	Emit func(*model.RawReading)

	// Reader is a protocol specific source of raw readings.
	// Implementations are thin translations of a client library into RawReading values.
	Reader interface {
		// Name is a human-readable source identifier for logging
		Name() string
		// Read produces readings until ctx is done or the source fails for good.
		// It returns nil on cancellation. A reader can only be read once.
		Read(ctx context.Context, emit Emit) error
		// Close releases connections and sessions. It is idempotent.
		Close() error
	}

	// BaseReader carries the single use and idempotent close bookkeeping shared by readers.
	BaseReader struct {
		used      int32
		closeOnce sync.Once
		closeErr  error
	}
)

// Acquire marks the reader as used. It fails with ErrReaderReused on the second call.
func (b *BaseReader) Acquire() error {
	if !atomic.CompareAndSwapInt32(&b.used, 0, 1) {
		return ErrReaderReused
	}
	return nil
}

// CloseOnce runs f on the first call only and returns its error on every call.
func (b *BaseReader) CloseOnce(f func() error) error {
	b.closeOnce.Do(func() {
		b.closeErr = f()
	})
	return b.closeErr
}
