package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/example/storefront/pkg/discovery"
	"github.com/example/storefront/pkg/grpc"
	"github.com/example/storefront/pkg/repository"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			a.logger.Info("Schema is up to date")
			return nil
		},
	}
}

func newSeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the demo catalog into an empty database",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			inserted, err := store.SeedCatalog(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "inserted %d products\n", inserted)
			return nil
		},
	}
}

func newAuditCmd(a *app) *cobra.Command {
	var limit int64

	cmd := &cobra.Command{
		Use:   "audit ORDER_ID",
		Short: "Print the audit trail of an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orderID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid order id %q", args[0])
			}
			if a.cfg.MongoDB.URI == "" {
				return fmt.Errorf("mongodb.uri is not configured")
			}

			mongoRepo, err := repository.NewMongoRepository(cmd.Context(), &a.cfg.MongoDB)
			if err != nil {
				return err
			}
			defer mongoRepo.Close(cmd.Context())

			entries, err := mongoRepo.AuditTrail(cmd.Context(), orderID, limit)
			if err != nil {
				return err
			}
			for _, e := range entries {
				data, _ := json.Marshal(e.Data)
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", e.CreatedAt.Format(time.RFC3339), e.Action, data)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&limit, "limit", 20, "maximum number of entries")
	return cmd
}

func newOrderCmd(a *app) *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "order ORDER_ID",
		Short: "Fetch an order from a running storefront over gRPC",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orderID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid order id %q", args[0])
			}

			var sd *discovery.ServiceDiscovery
			if len(a.cfg.Etcd.Endpoints) > 0 {
				sd, err = discovery.NewServiceDiscovery(&a.cfg.Etcd, a.logger)
				if err != nil {
					a.logger.Warn("Failed to connect to etcd", zap.Error(err))
				} else {
					defer sd.Close()
				}
			}

			if target == "" {
				target = a.cfg.GRPC.Addr()
			}
			conn, err := grpc.Dial(cmd.Context(), sd, a.cfg.Server.Name+"-grpc", target, a.logger)
			if err != nil {
				return err
			}
			defer conn.Close()

			order, err := grpc.NewOrderClient(conn).GetOrder(cmd.Context(), orderID)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(order)
		},
	}
	cmd.Flags().StringVar(&target, "target", "", "gRPC address (defaults to grpc.host:grpc.port)")
	return cmd
}
