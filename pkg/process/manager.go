// Package process translates OS signals into context cancellation so an
// in-flight workspace build can wind down cleanly.
package process

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/masonry-build/masonry/pkg/logger"
)

// Manager owns the signal-cancelled run context. The first interrupt
// cancels the context; a second one terminates the process immediately.
type Manager struct {
	logger           logger.Logger
	shutdownHandlers []func()

	mu      sync.Mutex
	wg      sync.WaitGroup
	running bool
	stop    chan struct{}
}

// NewManager creates a process manager
func NewManager(log logger.Logger) *Manager {
	return &Manager{logger: log}
}

// RegisterShutdownHandler adds a handler invoked on cancellation, in
// reverse registration order.
func (m *Manager) RegisterShutdownHandler(handler func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdownHandlers = append(m.shutdownHandlers, handler)
}

// Start derives a context cancelled on SIGINT or SIGTERM
func (m *Manager) Start(parent context.Context) context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return parent
	}
	m.running = true
	m.stop = make(chan struct{})

	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer signal.Stop(sigChan)

		select {
		case <-m.stop:
			cancel()
			return
		case <-ctx.Done():
			m.handleShutdown()
			return
		case sig := <-sigChan:
			m.logger.Info("received signal, cancelling workspace build",
				logger.WithField("signal", sig.String()))
			cancel()
			m.handleShutdown()
		}

		select {
		case <-m.stop:
		case sig := <-sigChan:
			m.logger.Error("received second signal, exiting",
				logger.WithField("signal", sig.String()))
			os.Exit(130)
		}
	}()
	return ctx
}

// Stop releases the signal handling goroutine
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stop)
	m.mu.Unlock()

	m.wg.Wait()
}

// IsRunning reports whether signal handling is active
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) handleShutdown() {
	m.mu.Lock()
	handlers := make([]func(), len(m.shutdownHandlers))
	copy(handlers, m.shutdownHandlers)
	m.mu.Unlock()

	for i := len(handlers) - 1; i >= 0; i-- {
		handlers[i]()
	}
}
