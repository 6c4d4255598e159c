package main

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/chosei-dev/chosei/libs/config"
	"github.com/chosei-dev/chosei/libs/grpcx"
	"github.com/chosei-dev/chosei/libs/runtime"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const healthProbeEvery = 10 * time.Second

// startGrpcServer exposes the standard gRPC health service. Its status
// follows the same dependency checks as /readyz.
func startGrpcServer(ctx context.Context, logger *slog.Logger, checks []runtime.ReadyCheck) error {
	port, err := config.Port("GRPC_PORT", "9090")
	if err != nil {
		return err
	}
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return err
	}

	srv, hs := grpcx.NewServer(logger)
	go probeHealth(ctx, hs, checks)

	go func() {
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := srv.Serve(lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		hs.Shutdown()
		srv.GracefulStop()
	}()

	return nil
}

func probeHealth(ctx context.Context, hs *health.Server, checks []runtime.ReadyCheck) {
	ticker := time.NewTicker(healthProbeEvery)
	defer ticker.Stop()
	for {
		status := healthpb.HealthCheckResponse_SERVING
		for _, c := range checks {
			if c.Check == nil {
				continue
			}
			checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err := c.Check(checkCtx)
			cancel()
			if err != nil {
				status = healthpb.HealthCheckResponse_NOT_SERVING
				break
			}
		}
		hs.SetServingStatus("", status)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
