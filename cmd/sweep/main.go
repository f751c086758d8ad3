package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/CrewChiefSteve/ccs-operations-sub001/internal/app"
	"github.com/CrewChiefSteve/ccs-operations-sub001/internal/core"
	"github.com/CrewChiefSteve/ccs-operations-sub001/internal/db"
	"github.com/CrewChiefSteve/ccs-operations-sub001/internal/notify"

	"github.com/joho/godotenv"
)

// One-shot sweep runner for cron jobs and operators:
//
//	sweep stock|po|sla|all
func main() {
	_ = godotenv.Load()

	name := "all"
	if len(os.Args) > 1 {
		name = os.Args[1]
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	componentService := core.NewComponentService(pool)
	locationService := core.NewLocationService(pool)
	supplierService := core.NewSupplierService(pool)
	stockService := core.NewStockService(pool)
	orderService := core.NewPurchaseOrderService(pool, stockService)
	buildService := core.NewBuildOrderService(pool, stockService)
	bomService := core.NewBOMService(pool)
	alertService := core.NewAlertService(pool)
	taskService := core.NewTaskService(pool)
	notifier := notify.NewLogNotifier(log.Default())
	monitorService := core.NewMonitorService(pool, orderService, notifier, log.Default())

	svc := app.NewAppService(componentService, locationService, supplierService,
		stockService, orderService, buildService, bomService,
		alertService, taskService, monitorService, nil)

	result, err := svc.RunSweep(ctx, name)
	if err != nil {
		log.Fatalf("sweep: %v", err)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("encode result: %v", err)
	}
	fmt.Println(string(out))
}
