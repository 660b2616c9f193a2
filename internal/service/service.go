// Package service wires the stream, engine, and dispatcher together and owns
// their lifecycle.
package service

import (
	"context"
	"fmt"
	"log"
	"sync"

	"token-sentinel/internal/dispatch"
	"token-sentinel/internal/engine"
	"token-sentinel/internal/stream"
)

// Options contains the components a Service orchestrates.
type Options struct {
	Engine     *engine.Engine
	Stream     *stream.Manager
	Dispatcher *dispatch.Dispatcher
	Logger     *log.Logger
}

// Service runs the monitoring pipeline: the stream feeds the engine, the
// engine feeds the dispatcher. Shutdown drains in reverse order so queued
// alerts are not lost.
type Service struct {
	engine     *engine.Engine
	stream     *stream.Manager
	dispatcher *dispatch.Dispatcher
	logger     *log.Logger
}

// New creates a Service.
func New(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Service{
		engine:     opts.Engine,
		stream:     opts.Stream,
		dispatcher: opts.Dispatcher,
		logger:     logger,
	}
}

// AddTrackedMint starts monitoring a mint and updates the stream filter.
func (s *Service) AddTrackedMint(mint string) {
	if s.engine.Track(mint) {
		s.stream.SetFilter(s.engine.TrackedMints())
		s.logger.Printf("[service] tracking %s", mint)
	}
}

// RemoveTrackedMint stops monitoring a mint and updates the stream filter.
func (s *Service) RemoveTrackedMint(mint string) {
	if s.engine.Untrack(mint) {
		s.stream.SetFilter(s.engine.TrackedMints())
		s.logger.Printf("[service] untracking %s", mint)
	}
}

// Run starts all components and blocks until ctx is cancelled or a component
// fails. On return the pipeline has fully drained: no payload handlers are in
// flight and the alert queue is empty or past its drain timeout.
func (s *Service) Run(ctx context.Context) error {
	if err := s.engine.LoadTracked(ctx); err != nil {
		return fmt.Errorf("load tracked mints: %w", err)
	}
	s.stream.SetFilter(s.engine.TrackedMints())

	streamCtx, stopStream := context.WithCancel(ctx)
	defer stopStream()

	// The dispatcher outlives ctx so Shutdown can drain the queue.
	dispCtx, stopDispatcher := context.WithCancel(context.Background())
	defer stopDispatcher()

	errCh := make(chan error, 2)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.stream.Run(streamCtx); err != nil && streamCtx.Err() == nil {
			errCh <- fmt.Errorf("stream: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.dispatcher.Run(dispCtx); err != nil && dispCtx.Err() == nil {
			errCh <- fmt.Errorf("dispatcher: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.engine.RunSweeper(streamCtx); err != nil && streamCtx.Err() == nil {
			errCh <- fmt.Errorf("sweeper: %w", err)
		}
	}()

	s.logger.Println("[service] pipeline started")

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		s.logger.Printf("[service] component failed: %v", runErr)
	}

	// Stop taking new work, finish what is in flight, then drain alerts.
	stopStream()
	s.engine.Wait()
	if err := s.dispatcher.Shutdown(); err != nil {
		s.logger.Printf("[service] dispatcher drain: %v", err)
	}
	stopDispatcher()
	wg.Wait()

	s.logger.Println("[service] pipeline stopped")
	if runErr != nil {
		return runErr
	}
	return ctx.Err()
}
