package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"househunt/internal/househunt"
	mongoMigration "househunt/internal/migrations/mongo"
	"househunt/internal/seed"
	"househunt/pkg/config"

	"github.com/spf13/cobra"
)

const JobName = "househunt-migrate"

func main() {
	rootCmd := &cobra.Command{
		Use:          JobName,
		Short:        "HouseHunt database operations",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().Duration("timeout", 2*time.Minute, "Overall deadline for the job")

	rootCmd.AddCommand(migrateCmd(), seedCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create collections, validators and indexes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := jobContext(cmd)
			defer cancel()

			cfg := config.Load(JobName)
			cfg.SetMongo()
			defer cfg.GracefulShutdown()

			db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
			if err := mongoMigration.RunMigration(ctx, db, cfg.Log); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load users, properties and bookings from a YAML fixture file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("file")
			fixtures, err := seed.LoadFixtures(path)
			if err != nil {
				return err
			}

			ctx, cancel := jobContext(cmd)
			defer cancel()

			cfg := config.Load(JobName)
			cfg.SetMongo()
			defer cfg.GracefulShutdown()

			services := househunt.NewServices(cfg, nil)
			seeder := seed.NewSeeder(services.Users, services.Properties, services.Bookings, cfg.Log)
			res, err := seeder.Run(ctx, fixtures)
			if err != nil {
				return fmt.Errorf("seed failed: %w", err)
			}

			fmt.Printf("users: %d created, %d existing\n", res.UsersCreated, res.UsersExisting)
			fmt.Printf("properties: %d created, %d existing\n", res.PropertiesCreated, res.PropertiesExisting)
			fmt.Printf("bookings: %d created\n", res.BookingsCreated)
			return nil
		},
	}

	cmd.Flags().StringP("file", "f", "", "Path to the fixture YAML file")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func jobContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	return context.WithTimeout(cmd.Context(), timeout)
}
