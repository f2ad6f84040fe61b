package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/avolkova/ragcore/internal/bootstrap"
	"github.com/avolkova/ragcore/internal/config"
	"github.com/avolkova/ragcore/internal/eval"
	"github.com/avolkova/ragcore/internal/observability/logging"
)

// One-shot battery runner. Logs go to stderr so stdout stays clean for
// the report.
func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewTextLogger("eval", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap error", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	harness := app.Harness
	if harness == nil {
		battery := eval.BuiltinBattery()
		if cfg.EvalBatteryPath != "" {
			battery, err = eval.LoadBattery(cfg.EvalBatteryPath)
			if err != nil {
				slog.Error("load battery", "error", err)
				os.Exit(1)
			}
		}
		harness = eval.NewHarness(app.Service, battery, eval.Options{
			PassF1:           cfg.EvalPassF1,
			MaxHallucination: cfg.EvalMaxHallucination,
		})
	}

	report, err := harness.Run(ctx, "eval-cli")
	if err != nil {
		slog.Error("battery run aborted", "error", err)
		os.Exit(1)
	}

	if os.Getenv("EVAL_REPORT_FORMAT") == "text" {
		fmt.Println(report.Format())
	} else {
		out, err := report.JSON()
		if err != nil {
			slog.Error("encode report", "error", err)
			os.Exit(1)
		}
		fmt.Println(string(out))
	}

	if report.Passed < report.Total {
		os.Exit(1)
	}
}
