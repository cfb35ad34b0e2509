package controller

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

type Runnable interface {
	// Start runs the component until the context is done or it is stopped
	// some other way. Start blocks until the component has exited.
	Start(context.Context) error
}

// RunnableFunc adapts a function to Runnable.
type RunnableFunc func(context.Context) error

func (f RunnableFunc) Start(ctx context.Context) error {
	return f(ctx)
}

// Manager runs a fixed set of Runnables concurrently and waits for all of
// them to exit.
type Manager struct {
	runnables []Runnable

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *zap.Logger
}

func NewManager(logger *zap.Logger, runnables ...Runnable) *Manager {
	return &Manager{
		runnables: runnables,
		logger:    logger,
	}
}

// Start launches every runnable in its own goroutine and blocks until all
// of them have returned. Errors other than context.Canceled are logged and
// joined into the result.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	ctx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()
	defer m.Stop()

	var (
		errMu sync.Mutex
		errs  []error
	)
	for _, runnable := range m.runnables {
		m.wg.Add(1)
		go func(r Runnable) {
			defer m.wg.Done()
			if err := r.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				m.logger.Error("runnable error", zap.Error(err))
				errMu.Lock()
				errs = append(errs, err)
				errMu.Unlock()
			}
		}(runnable)
	}

	m.wg.Wait()
	return errors.Join(errs...)
}

// Stop cancels the context handed to every Runnable.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
	}
}
