/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package input

import (
	"context"
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/traas-stack/holoinsight-ingest/pkg/appconfig"
	"testing"
)

type stubReader struct {
	BaseReader
	closes int
}

func (s *stubReader) Name() string {
	return "stub"
}

func (s *stubReader) Read(ctx context.Context, emit Emit) error {
	if err := s.Acquire(); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

func (s *stubReader) Close() error {
	return s.CloseOnce(func() error {
		s.closes++
		return errors.New("closed")
	})
}

func TestBaseReader(t *testing.T) {
	r := &stubReader{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, r.Read(ctx, nil))
	assert.ErrorIs(t, r.Read(ctx, nil), ErrReaderReused)

	assert.EqualError(t, r.Close(), "closed")
	assert.EqualError(t, r.Close(), "closed")
	assert.Equal(t, 1, r.closes)
}

func TestFactory(t *testing.T) {
	Register("stub-on", func(cfg *appconfig.IngestConfig) bool { return cfg.Site == "s1" }, func(cfg *appconfig.IngestConfig) (Reader, error) {
		return &stubReader{}, nil
	})
	Register("stub-panic", nil, func(cfg *appconfig.IngestConfig) (Reader, error) {
		panic("boom")
	})

	cfg := &appconfig.IngestConfig{Site: "s1"}
	assert.Equal(t, []string{"stub-on"}, Enabled(cfg))
	assert.Contains(t, Types(), "stub-panic")

	r, err := Parse("stub-on", cfg)
	require.NoError(t, err)
	assert.Equal(t, "stub", r.Name())

	// every call builds a new instance
	r2, err := Parse("stub-on", cfg)
	require.NoError(t, err)
	assert.NotSame(t, r, r2)

	_, err = Parse("stub-panic", cfg)
	assert.Error(t, err)

	_, err = Parse("nope", cfg)
	assert.ErrorIs(t, err, ErrUnknownReaderType)
}
