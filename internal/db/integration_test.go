//go:build integration

package db

import (
	"os"
	"strconv"
	"testing"

	"github.com/zulandar/graderqueue/internal/config"
)

// mysqlConfig reads a MySQL server location from the environment. Tests are
// skipped when GQ_TEST_MYSQL_HOST is unset.
func mysqlConfig(t *testing.T) config.DatabaseConfig {
	t.Helper()
	host := os.Getenv("GQ_TEST_MYSQL_HOST")
	if host == "" {
		t.Skip("GQ_TEST_MYSQL_HOST not set")
	}
	port, _ := strconv.Atoi(os.Getenv("GQ_TEST_MYSQL_PORT"))
	if port == 0 {
		port = 3306
	}
	return config.DatabaseConfig{
		Driver:   "mysql",
		Host:     host,
		Port:     port,
		User:     os.Getenv("GQ_TEST_MYSQL_USER"),
		Password: os.Getenv("GQ_TEST_MYSQL_PASSWORD"),
		Database: os.Getenv("GQ_TEST_MYSQL_DATABASE"),
	}
}

func TestIntegration_MySQLMigrateAndSeed(t *testing.T) {
	db, err := Connect(mysqlConfig(t))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	catalog := config.CatalogConfig{ServerTypes: []config.ServerTypeConfig{
		{Name: "integration-runner", Tags: []string{"integration"}},
	}}
	if err := SeedCatalog(db, catalog); err != nil {
		t.Fatalf("SeedCatalog: %v", err)
	}
	if !db.Migrator().HasTable("job_types") {
		t.Error("job_types table missing")
	}
}
