package handler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const ServiceName = "orderbot.Bot"

type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthReporter serves grpc.health.v1 and keeps the status in line with the order store.
type HealthReporter struct {
	server   *health.Server
	store    Pinger
	interval time.Duration
	logger   zerolog.Logger
}

func NewHealthReporter(store Pinger, interval time.Duration, logger zerolog.Logger) *HealthReporter {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &HealthReporter{
		server:   health.NewServer(),
		store:    store,
		interval: interval,
		logger:   logger,
	}
}

func (h *HealthReporter) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.server)
}

// Check pings the store once and publishes the result.
func (h *HealthReporter) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := h.store.Ping(ctx); err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		h.logger.Warn().Err(err).Msg("order store unhealthy")
	}

	h.server.SetServingStatus("", status)
	h.server.SetServingStatus(ServiceName, status)
	return status
}

// Run checks on every tick until ctx is done, then reports NOT_SERVING.
func (h *HealthReporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			h.server.Shutdown()
			return nil
		case <-ticker.C:
			h.Check(ctx)
		}
	}
}
