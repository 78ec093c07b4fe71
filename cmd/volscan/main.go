package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"volscan/pkg/config"
	"volscan/pkg/inference"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "", "YAML configuration file (defaults are used when empty)")
	inputDir := flag.String("input", "", "Directory containing the input slices (JPEG or TIFF)")
	outputDir := flag.String("output", "output", "Directory to save the output volumes")
	writeConfig := flag.String("write-config", "", "Write the default configuration to this path and exit")
	flag.Parse()

	if *writeConfig != "" {
		if err := config.CreateDefaultConfigFile(*writeConfig); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Default configuration written to: %s\n", *writeConfig)
		return
	}

	// Validate inputs
	if *inputDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg := config.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	fmt.Println("================================")
	fmt.Println("SLIDING-WINDOW VOLUME SCAN")
	fmt.Println("================================")

	runner := inference.NewRunner(&inference.Params{
		InputDir:  *inputDir,
		OutputDir: *outputDir,
		Config:    cfg,
	})
	fmt.Printf("Run ID: %s\n", runner.RunID())

	startTime := time.Now()
	if err := runner.Process(); err != nil {
		log.Fatalf("Scan failed: %v", err)
	}
	processingTime := time.Since(startTime)

	metrics := runner.GetMetrics()
	fmt.Printf("\nScan completed successfully in %.2f seconds!\n", processingTime.Seconds())
	fmt.Printf("Output volumes saved to: %s\n\n", *outputDir)

	fmt.Printf("Scan locations: %d\n", metrics.Locations)
	for _, key := range cfg.ScanSpec().Keys() {
		h := metrics.Heads[key]
		fmt.Printf("\nHead %q:\n", key)
		fmt.Printf("- Mean: %.6f (std %.6f)\n", h.Mean, h.StdDev)
		fmt.Printf("- Range: [%.6f, %.6f]\n", h.Min, h.Max)
		fmt.Printf("- Coverage: %.2f%%\n", h.Coverage*100)
	}
}
