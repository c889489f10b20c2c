package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/warehouse_backend/config"
	"github.com/mmdatafocus/warehouse_backend/utils"
	"github.com/mmdatafocus/warehouse_backend/workflow"
)

func main() {
	output := flag.String("out", "", "Optional: write findings to this .xlsx file")
	persist := flag.Bool("persist", false, "Store findings in reconciliation_reports")
	failOnFindings := flag.Bool("fail-on-findings", true, "Exit 2 when any check finds a mismatch")
	timeout := flag.Duration("timeout", 10*time.Minute, "Give up after this long")
	flag.Parse()

	if *output != "" && !strings.HasSuffix(strings.ToLower(*output), ".xlsx") {
		fmt.Fprintln(os.Stderr, "--out must end in .xlsx")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := config.GetLogger()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx = utils.SetCorrelationIdInContext(ctx, "reconcile-check-"+uuid.NewString())

	summary, err := workflow.RunReconciliationChecks(ctx, logger, *persist)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reconciliation failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("correlation_id=%s findings=%d\n", summary.CorrelationId, summary.Total)
	for _, check := range summary.CheckTypes() {
		fmt.Printf("  %-22s %d\n", check, summary.ByCheck[check])
	}

	if *output != "" {
		if err := workflow.SaveReconciliationWorkbook(*output, summary); err != nil {
			fmt.Fprintf(os.Stderr, "write %s: %v\n", *output, err)
			os.Exit(1)
		}
		fmt.Printf("report written to %s\n", *output)
	}

	if *failOnFindings && !summary.Clean() {
		os.Exit(2)
	}
}
