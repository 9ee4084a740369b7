// Entry point for the RetentionOS churn analysis service
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/cors"

	"github.com/retention-os/retentionos-go/pkg/config"
	"github.com/retention-os/retentionos-go/utils"

	analysis "github.com/retention-os/retentionos-go/pipelines/Analysis"
	ingest "github.com/retention-os/retentionos-go/pipelines/Ingest"
)

const retentionVersion = "v0.2.0"

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		printHelp()
		return
	}

	switch args[0] {
	case "-h", "--help", "help":
		printHelp()
		return
	case "--version", "-v":
		fmt.Println("RetentionOS version:", retentionVersion)
		return
	case "--server":
		port := ""
		if len(args) > 1 {
			port = args[1]
		}
		runServer(port)
		return
	case "--file":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "Error: --file requires a CSV or Excel file path")
			os.Exit(1)
		}
		runBatch(args[1], args[2:])
		return
	default:
		fmt.Fprintln(os.Stderr, "Unknown argument. Use --help for usage.")
		os.Exit(1)
	}
}

// runBatch analyzes a single file and writes the augmented table back out
func runBatch(path string, flags []string) {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	outPath := ""
	opts := analysis.DefaultOptions()
	opts.FuzzyThreshold = cfg.FuzzyThreshold
	opts.Rule.InactiveDays = float64(cfg.InactiveDays)
	opts.Rule.MinOrders = float64(cfg.MinOrders)
	opts.Rule.MinSessions = float64(cfg.MinSessions)
	opts.Thresholds.High = cfg.ProbHigh
	opts.Thresholds.Medium = cfg.ProbMedium

	for i := 0; i < len(flags); i++ {
		switch flags[i] {
		case "--model":
			opts.Path = analysis.PathModel
		case "--rfm":
			opts.RunRFM = true
		case "--label":
			if i+1 >= len(flags) {
				fmt.Fprintln(os.Stderr, "Error: --label requires a column name")
				os.Exit(1)
			}
			i++
			opts.LabelColumn = flags[i]
		case "--out":
			if i+1 >= len(flags) {
				fmt.Fprintln(os.Stderr, "Error: --out requires a file path")
				os.Exit(1)
			}
			i++
			outPath = flags[i]
		default:
			fmt.Fprintf(os.Stderr, "Unknown flag %q. Use --help for usage.\n", flags[i])
			os.Exit(1)
		}
	}
	if outPath == "" {
		outPath = strings.TrimSuffix(path, ".csv") + "_scored.csv"
	}

	file, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening %s: %v\n", path, err)
		os.Exit(1)
	}
	defer file.Close()

	ds, err := ingest.ParseFile(path, file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing %s: %v\n", path, err)
		os.Exit(1)
	}

	result, err := analysis.NewPipeline().Run(ds, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Analysis failed: %v\n", err)
		os.Exit(1)
	}

	out, err := os.Create(outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating %s: %v\n", outPath, err)
		os.Exit(1)
	}
	defer out.Close()

	if err := ingest.WriteCSV(out, result.Dataset, nil); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", outPath, err)
		os.Exit(1)
	}

	fmt.Printf("Analyzed %d rows -> %s\n", result.Dataset.RowCount, outPath)
	for level, count := range result.Summary.RiskCounts {
		fmt.Printf("  %-6s %d\n", level, count)
	}
	if result.LabelSource == "proxy" {
		fmt.Println("  note: model trained on a proxy churn label; predictions are best-effort")
	}
	if result.RFM != nil {
		fmt.Printf("  segments: %d users\n", len(result.RFM.Users))
		for _, warning := range result.RFM.Warnings {
			fmt.Printf("  warning: %s\n", warning.Details)
		}
	}
}

func runServer(port string) {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if port != "" {
		cfg.Port = port
	}

	server, err := NewServer(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating server: %v\n", err)
		os.Exit(1)
	}
	logger := utils.GetLogger()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	})

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      c.Handler(server.router),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting RetentionOS server", utils.String("port", cfg.Port), utils.Component("server"))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", err, utils.Component("server"))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server", utils.Component("server"))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", err, utils.Component("server"))
	}
	logger.Info("server exited", utils.Component("server"))
}

func printHelp() {
	fmt.Println("Usage:")
	fmt.Println("  --file <path> [--model] [--rfm] [--label <col>] [--out <path>]")
	fmt.Println("                      Analyze a CSV/Excel file and write the scored table")
	fmt.Println("  --server [port]     Start the HTTP API (default port: 8080)")
	fmt.Println("  -h, --help, help    Show this help message")
	fmt.Println("  -v, --version       Show version")
}
