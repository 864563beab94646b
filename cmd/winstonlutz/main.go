package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"winstonlutz/pkg/config"
	"winstonlutz/pkg/imageio"
	"winstonlutz/pkg/winstonlutz"
)

func main() {
	// Parse command line arguments
	inputDir := flag.String("input", "", "Directory containing Winston-Lutz portal images and a manifest.yaml")
	configPath := flag.String("config", "winstonlutz.yaml", "Path to the YAML configuration file")
	writeConfig := flag.Bool("write-config", false, "Write the default configuration to the config path and exit")
	flag.Parse()

	if *writeConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write default config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	// Validate inputs
	if *inputDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Output.Verbose {
		fmt.Println("================================")
		fmt.Println("WINSTON-LUTZ ISOCENTER ANALYSIS")
		fmt.Println("================================")
		fmt.Printf("Loading images from %s...\n", *inputDir)
	}

	startTime := time.Now()
	images, err := imageio.LoadDirectory(*inputDir, cfg.DetectionParams())
	if err != nil {
		log.Fatalf("Failed to load images: %v", err)
	}
	if cfg.Output.Verbose {
		fmt.Printf("Loaded and analyzed %d images in %.2f seconds\n\n",
			len(images), time.Since(startTime).Seconds())
		for _, img := range images {
			fmt.Printf("  %s [%s]: CAX->BB %.2fmm\n",
				img, img.VariableAxis(), img.CAX2BBDistance())
		}
		fmt.Println()
	}

	wl := winstonlutz.New(images...)
	fmt.Println(wl.Results())

	// Report sag over all three directions when gantry images are present
	if wl.ContainsAxis(winstonlutz.Gantry) {
		fmt.Println("Gantry sag ranges (BB / EPID):")
		for _, axis := range []winstonlutz.OffsetAxis{
			winstonlutz.OffsetX, winstonlutz.OffsetY, winstonlutz.OffsetZ,
		} {
			bb, err := wl.BBSagRange(axis)
			if err != nil {
				continue
			}
			epid, err := wl.EPIDSagRange(axis)
			if err != nil {
				continue
			}
			fmt.Printf("  %s: %.2fmm / %.2fmm\n", axis, bb, epid)
		}
	}
}
