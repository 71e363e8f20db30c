package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"CollectRecon/internal/config"
	"CollectRecon/internal/serviceiface"
)

type GatewayService struct {
	config map[string]interface{}
	server *http.Server
}

func NewGatewayService(cfg map[string]interface{}) serviceiface.Service {
	return &GatewayService{config: cfg}
}

func (s *GatewayService) Name() string {
	return "gateway"
}

func (s *GatewayService) Start() error {
	port := config.Int(s.config, "port", config.DefaultGatewayPort)
	// collections_urls lists several instances; collections_url is the
	// single-instance form
	targets := config.Strings(s.config, "collections_urls",
		config.Strings(s.config, "collections_url", []string{"http://localhost:6143"}))
	router, err := NewRouter(targets...)
	if err != nil {
		return err
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("API Gateway started on :%d", port)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[ERROR] Gateway server failed: %v", err)
		}
	}()
	return nil
}

func (s *GatewayService) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
