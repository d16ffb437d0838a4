// Package service holds the lifecycle shared by long running node
// components.
package service

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/stvaults/vaulthub/libs/log"
)

var (
	// ErrAlreadyStarted is returned when somebody tries to start an already
	// running service.
	ErrAlreadyStarted = errors.New("already started")
	// ErrAlreadyStopped is returned when somebody tries to stop an already
	// stopped service.
	ErrAlreadyStopped = errors.New("already stopped")
	// ErrNotStarted is returned when somebody tries to stop a not running
	// service.
	ErrNotStarted = errors.New("not started")
)

// Service defines a service that can be started and stopped.
type Service interface {
	// Start is called to start the service, which should run until
	// the context terminates. If the service is already running, Start
	// must report an error.
	Start(context.Context) error

	// Return true if the service is running
	IsRunning() bool

	// String representation of the service
	String() string

	// Wait blocks until the service is stopped.
	Wait()
}

// Implementation describes the implementation that the
// BaseService implementation wraps.
type Implementation interface {
	Service

	// Called by the Services Start Method
	OnStart(context.Context) error

	// Called when the service's context is canceled.
	OnStop()
}

/*
BaseService runs an Implementation at most once: OnStart is called by Start
and OnStop by Stop or by cancellation of the context passed to Start. If
OnStart returns an error the service is not marked as started and Start may
be called again.

Typical usage:

	type FooService struct {
		service.BaseService
		// private fields
	}

	func NewFooService(logger log.Logger) *FooService {
		fs := &FooService{}
		fs.BaseService = *service.NewBaseService(logger, "FooService", fs)
		return fs
	}

	func (fs *FooService) OnStart(ctx context.Context) error {
		// start subroutines, etc.
	}

	func (fs *FooService) OnStop() {
		// close/destroy private fields
	}
*/
type BaseService struct {
	logger  log.Logger
	name    string
	started uint32 // atomic
	stopped uint32 // atomic
	quit    chan struct{}

	// The "subclass" of BaseService
	impl Implementation
}

// NewBaseService creates a new BaseService. A nil logger discards output.
func NewBaseService(logger log.Logger, name string, impl Implementation) *BaseService {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &BaseService{
		logger: logger,
		name:   name,
		quit:   make(chan struct{}),
		impl:   impl,
	}
}

// Start starts the Service and calls its OnStart method. An error will be
// returned if the service is already running or stopped.
func (bs *BaseService) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapUint32(&bs.started, 0, 1) {
		return ErrAlreadyStarted
	}
	if atomic.LoadUint32(&bs.stopped) == 1 {
		bs.logger.Error("not starting service; already stopped", "service", bs.name)
		atomic.StoreUint32(&bs.started, 0)
		return ErrAlreadyStopped
	}

	bs.logger.Info("starting service", "service", bs.name)

	if err := bs.impl.OnStart(ctx); err != nil {
		// revert flag
		atomic.StoreUint32(&bs.started, 0)
		return err
	}

	go func(ctx context.Context) {
		select {
		case <-bs.quit:
			// stopped explicitly
			return
		case <-ctx.Done():
			if !bs.impl.IsRunning() {
				return
			}
			if err := bs.Stop(); err != nil {
				bs.logger.Error("stopping service", "service", bs.name, "err", err)
				return
			}
			bs.logger.Info("stopped service", "service", bs.name)
		}
	}(ctx)

	return nil
}

// Stop calls OnStop and closes the quit channel. An error will be returned
// if the service is already stopped or was never started.
func (bs *BaseService) Stop() error {
	if !atomic.CompareAndSwapUint32(&bs.stopped, 0, 1) {
		return ErrAlreadyStopped
	}
	if atomic.LoadUint32(&bs.started) == 0 {
		bs.logger.Error("not stopping service; not started yet", "service", bs.name)
		atomic.StoreUint32(&bs.stopped, 0)
		return ErrNotStarted
	}

	bs.logger.Info("stopping service", "service", bs.name)
	bs.impl.OnStop()
	close(bs.quit)
	return nil
}

// IsRunning reports whether the service was started and not yet stopped.
func (bs *BaseService) IsRunning() bool {
	return atomic.LoadUint32(&bs.started) == 1 && atomic.LoadUint32(&bs.stopped) == 0
}

// Wait blocks until the service is stopped.
func (bs *BaseService) Wait() { <-bs.quit }

func (bs *BaseService) String() string { return bs.name }
