package main

import (
	"context"
	"log"
	"net/http"
	"os"

	webAdapter "github.com/CrewChiefSteve/ccs-operations-sub001/internal/adapters/web"
	"github.com/CrewChiefSteve/ccs-operations-sub001/internal/ai"
	"github.com/CrewChiefSteve/ccs-operations-sub001/internal/app"
	"github.com/CrewChiefSteve/ccs-operations-sub001/internal/core"
	"github.com/CrewChiefSteve/ccs-operations-sub001/internal/db"
	"github.com/CrewChiefSteve/ccs-operations-sub001/internal/notify"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

func main() {
	_ = godotenv.Load()

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

	var agent ai.AgentService
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		agent = ai.NewAgent(apiKey)
	} else {
		log.Println("Warning: OPENAI_API_KEY is not set; assistant disabled")
	}

	svc := app.NewAppService(componentService, locationService, supplierService,
		stockService, orderService, buildService, bomService,
		alertService, taskService, monitorService, agent)

	scheduler := cron.New()
	schedule(scheduler, "@every 1h", "stock", monitorService.RunStockSweep)
	schedule(scheduler, "@every 6h", "po", monitorService.RunPOOverdueSweep)
	schedule(scheduler, "@every 30m", "sla", monitorService.RunTaskSLASweep)
	scheduler.Start()
	defer scheduler.Stop()

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	handler := webAdapter.NewHandler(svc, allowedOrigins)

	log.Printf("server starting on :%s", port)
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatalf("server: %v", err)
	}
}

func schedule(c *cron.Cron, spec, name string, sweep func(context.Context) (*core.SweepReport, error)) {
	_, err := c.AddFunc(spec, func() {
		report, err := sweep(context.Background())
		if err != nil {
			log.Printf("%s sweep failed: %v", name, err)
			return
		}
		log.Printf("%s sweep: checked=%d alerted=%d escalated=%d resolved=%d skipped=%d",
			name, report.Checked, report.Alerted, report.Escalated, report.Resolved, report.Skipped)
	})
	if err != nil {
		log.Fatalf("schedule %s sweep: %v", name, err)
	}
}
