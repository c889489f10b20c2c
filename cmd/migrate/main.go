// migrate applies the schema once, for deployments that start the API with
// SKIP_MIGRATIONS=true.
//
// Usage:
//
//	DB_DRIVER=mysql DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/migrate
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mmdatafocus/warehouse_backend/config"
	"github.com/mmdatafocus/warehouse_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "If true, only list the tables that would be migrated")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := config.GetLogger()

	for _, m := range models.Models() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(m); err != nil {
			fmt.Fprintf(os.Stderr, "parse %T: %v\n", m, err)
			os.Exit(1)
		}
		exists := db.Migrator().HasTable(stmt.Schema.Table)
		fmt.Printf("%-28s exists=%v\n", stmt.Schema.Table, exists)
	}
	if *dryRun {
		fmt.Println("[dry-run] no changes written")
		return
	}

	if err := db.AutoMigrate(models.Models()...); err != nil {
		config.LogError(logger, "cmd", "migrate", "AutoMigrate", config.DatabaseDriver(), err)
		fmt.Fprintf(os.Stderr, "migrate failed: %v\n", err)
		os.Exit(1)
	}
	logger.WithFields(logrus.Fields{"field": "migrations", "driver": config.DatabaseDriver()}).Info("schema migrated")
	fmt.Println("done")
}
