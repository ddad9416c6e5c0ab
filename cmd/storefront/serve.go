package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/storefront/gateway"
	"github.com/example/storefront/pkg/discovery"
	"github.com/example/storefront/pkg/grpc"
	"github.com/example/storefront/pkg/repository"
	"github.com/example/storefront/pkg/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the storefront HTTP server (and gRPC server when configured)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) openStore(ctx context.Context) (*repository.Store, error) {
	store, err := repository.NewStore(&a.cfg.Database, a.logger)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func (a *app) serve(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	logger.Info("Starting storefront",
		zap.String("name", cfg.Server.Name),
		zap.Int("port", cfg.Server.Port))

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	var opts []service.Option
	if cfg.Redis.Addr != "" {
		redisRepo := repository.NewRedisRepository(&cfg.Redis)
		defer redisRepo.Close()
		if err := redisRepo.Ping(ctx); err != nil {
			logger.Warn("Redis connection failed, product cache disabled", zap.Error(err))
		} else {
			logger.Info("Redis connected successfully")
			opts = append(opts, service.WithProductCache(redisRepo))
		}
	}
	if cfg.MongoDB.URI != "" {
		mongoRepo, err := repository.NewMongoRepository(ctx, &cfg.MongoDB)
		if err != nil {
			logger.Warn("MongoDB connection failed, audit log disabled", zap.Error(err))
		} else {
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				mongoRepo.Close(closeCtx)
			}()
			opts = append(opts, service.WithAuditSink(mongoRepo))
		}
	}

	orders := service.NewOrderService(store, logger, opts...)

	gw, err := gateway.NewGateway(cfg, logger, store, orders)
	if err != nil {
		return err
	}

	serverErr := make(chan error, 2)
	go func() {
		if err := gw.Start(); err != nil {
			serverErr <- err
		}
	}()

	var grpcServer *grpc.OrderServer
	if cfg.GRPC.Enabled() {
		grpcServer = grpc.NewOrderServer(&cfg.GRPC, orders, logger)
		go func() {
			if err := grpcServer.Start(); err != nil {
				serverErr <- err
			}
		}()
	}

	instances := a.instances()
	var sd *discovery.ServiceDiscovery
	if len(cfg.Etcd.Endpoints) > 0 {
		sd, err = discovery.NewServiceDiscovery(&cfg.Etcd, logger)
		if err != nil {
			logger.Warn("Failed to connect to etcd, continuing without service discovery", zap.Error(err))
		} else {
			defer sd.Close()
			for _, instance := range instances {
				if err := sd.Register(ctx, instance); err != nil {
					logger.Error("Failed to register service", zap.String("name", instance.Name), zap.Error(err))
					continue
				}
				logger.Info("Service registered in etcd",
					zap.String("name", instance.Name),
					zap.String("address", instance.Addr()))
			}
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case <-sigCh:
		logger.Info("Received shutdown signal")
	case runErr = <-serverErr:
		logger.Error("Server error", zap.Error(runErr))
	}

	if sd != nil {
		for _, instance := range instances {
			if err := sd.Deregister(context.Background(), instance); err != nil {
				logger.Error("Failed to deregister service", zap.String("name", instance.Name), zap.Error(err))
			}
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := gw.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", zap.Error(err))
	}
	if grpcServer != nil {
		grpcServer.Stop()
	}

	logger.Info("Storefront stopped")
	return runErr
}

func (a *app) instances() []*discovery.ServiceInstance {
	instances := []*discovery.ServiceInstance{{
		Name: a.cfg.Server.Name + "-http",
		Host: a.cfg.Server.Host,
		Port: a.cfg.Server.Port,
	}}
	if a.cfg.GRPC.Enabled() {
		instances = append(instances, &discovery.ServiceInstance{
			Name: a.cfg.Server.Name + "-grpc",
			Host: a.cfg.GRPC.Host,
			Port: a.cfg.GRPC.Port,
		})
	}
	return instances
}
