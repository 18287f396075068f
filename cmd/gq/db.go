package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/graderqueue/internal/db"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the grader queue database",
		Long:  "Migrates all tables and seeds the worker-type and tag catalog from the config file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to grader queue config file")
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Connected to %s database\n", cfg.Database.Driver)

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	if err := db.SeedCatalog(gormDB, cfg.Catalog); err != nil {
		return err
	}
	fmt.Fprintf(out, "Seeded %d server types:", len(cfg.Catalog.ServerTypes))
	for _, st := range cfg.Catalog.ServerTypes {
		fmt.Fprintf(out, " %s", st.Name)
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "\nGrader queue database initialized successfully.")
	return nil
}
