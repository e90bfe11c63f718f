package app

import (
	"context"
	"errors"
	"testing"

	"github.com/finsight/finsight/internal/config"
	"github.com/finsight/finsight/internal/log"
)

func TestCloseOnPartialApp(t *testing.T) {
	t.Parallel()

	// Close must be safe before Setup finished wiring anything.
	a := &App{}
	if err := a.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestSetupNilConfig(t *testing.T) {
	t.Parallel()

	_, err := Setup(context.Background(), nil, log.NewNop())
	if !errors.Is(err, config.ErrConfigNil) {
		t.Errorf("Setup(nil) error = %v, want ErrConfigNil", err)
	}
}

func TestProvideOtelShutdownDisabled(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	shutdown := provideOtelShutdown(context.Background(), cfg, log.NewNop())
	if shutdown == nil {
		t.Fatal("provideOtelShutdown() returned nil func")
	}
	shutdown()
}
