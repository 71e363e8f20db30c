package collections

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"CollectRecon/internal/config"
	"CollectRecon/internal/jobs"
	"CollectRecon/internal/serviceiface"
)

const defaultPort = 6143

type CollectionsService struct {
	config  map[string]interface{}
	engine  *Engine
	sweeper SweepRunner
	server  *http.Server
}

func NewCollectionsService(cfg map[string]interface{}, engine *Engine) *CollectionsService {
	return &CollectionsService{
		config: cfg,
		engine: engine,
		// replaced by the scheduled cron service when one is configured so
		// manual and scheduled sweeps share one run guard
		sweeper: jobs.NewCronService(cfg, engine.Arrangements),
	}
}

var _ serviceiface.Service = (*CollectionsService)(nil)

func (s *CollectionsService) Name() string {
	return "collections"
}

func (s *CollectionsService) Engine() *Engine { return s.engine }

func (s *CollectionsService) SetSweepRunner(r SweepRunner) {
	if r != nil {
		s.sweeper = r
	}
}

func (s *CollectionsService) Handler() http.Handler {
	return NewRouter(s.engine, s.sweeper)
}

func (s *CollectionsService) Start() error {
	port := config.Int(s.config, "port", defaultPort)
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("Collections Service started on :%d", port)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[ERROR] Collections Service failed: %v", err)
		}
	}()
	return nil
}

func (s *CollectionsService) Stop() error {
	s.engine.Stream.Stop()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
