package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pallav-m/surya-isolation/internal/config"
	"github.com/pallav-m/surya-isolation/internal/imageio"
	"github.com/pallav-m/surya-isolation/internal/inference"
	"github.com/pallav-m/surya-isolation/internal/logger"
)

var inferCmd = &cobra.Command{
	Use:   "infer",
	Short: "Run a document understanding task over image files",
	Long: `Run one of the four document understanding tasks over a set of images
and print (or save) the per-image results as JSON.

Tasks:
  extract_text    Extract text from images
  detect_text     Detect text lines in images
  detect_layout   Detect layout elements (tables, images, headers, etc.)
  process_tables  Extract table structures`,
	Example: `  # Process a single image
  surya-isolation infer --images image.jpg --task extract_text --output results.json

  # Process multiple images
  surya-isolation infer --images img1.jpg --images img2.png --task detect_layout

  # Process a directory
  surya-isolation infer --input-dir ./images --task process_tables --output results.json

  # Extract text and save as txt
  surya-isolation infer --images document.jpg --task extract_text --output results.txt --format txt`,
	Args: cobra.NoArgs,
	RunE: runInfer,
}

func init() {
	rootCmd.AddCommand(inferCmd)

	inferCmd.Flags().StringSlice("images", nil, "One or more image file paths")
	inferCmd.Flags().String("input-dir", "", "Directory containing images to process")
	inferCmd.Flags().String("task", "", "Task type to perform (required)")
	inferCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	inferCmd.Flags().String("format", "json", "Output format (json or txt)")
	inferCmd.Flags().Int("timeout", 300, "Processing timeout in seconds")
	_ = inferCmd.MarkFlagRequired("task")
	inferCmd.MarkFlagsMutuallyExclusive("images", "input-dir")
	inferCmd.MarkFlagsOneRequired("images", "input-dir")
}

func runInfer(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("infer")

	imagePaths, _ := cmd.Flags().GetStringSlice("images")
	inputDir, _ := cmd.Flags().GetString("input-dir")
	task, _ := cmd.Flags().GetString("task")
	outputPath, _ := cmd.Flags().GetString("output")
	format, _ := cmd.Flags().GetString("format")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	if format != "json" && format != "txt" {
		return fmt.Errorf("unsupported format: %s", format)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	if inputDir != "" {
		imagePaths, err = imageio.ScanDir(inputDir)
		if err != nil {
			return err
		}
		if len(imagePaths) == 0 {
			return fmt.Errorf("no images found in %s", inputDir)
		}
		log.Info().Str("dir", inputDir).Int("count", len(imagePaths)).Msg("Found images")
	}

	images, err := imageio.Load(imagePaths)
	if err != nil {
		return err
	}

	engine, err := inference.BuildEngine(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize inference engine: %w", err)
	}

	log.Info().
		Str("task", task).
		Int("images", len(images)).
		Msg("Starting inference")

	start := time.Now()
	results, err := engine.Run(ctx, task, images)
	if err != nil {
		if errors.Is(err, inference.ErrUnknownTask) {
			return fmt.Errorf("invalid task type %q, must be one of: %s",
				task, strings.Join(engine.Tasks(), ", "))
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("inference timed out, try increasing --timeout")
		}
		log.Error().Err(err).Str("task", task).Msg("Inference failed")
		return fmt.Errorf("inference failed: %w", err)
	}

	log.Info().
		Int("results", len(results)).
		Dur("duration", time.Since(start)).
		Msg("Inference completed")

	return outputResults(results, outputPath, format, log)
}

// createContextWithTimeout creates a context with timeout and signal handling
func createContextWithTimeout(timeoutSecs int, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling inference")
			cancel()
		case <-ctx.Done():
			// Context completed normally
		}
	}()

	return ctx, cancel
}

// outputResults renders the per-image results and writes them to the output
// path or stdout.
func outputResults(results []map[string]any, outputPath, format string, log zerolog.Logger) error {
	var outputData []byte

	switch format {
	case "json":
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to create JSON output: %w", err)
		}
		outputData = append(data, '\n')
	case "txt":
		var sb strings.Builder
		for idx, result := range results {
			data, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to create output: %w", err)
			}
			fmt.Fprintf(&sb, "=== Image %d ===\n%s\n\n", idx+1, data)
		}
		outputData = []byte(sb.String())
	}

	if outputPath == "" {
		_, err := os.Stdout.Write(outputData)
		return err
	}

	if err := os.WriteFile(outputPath, outputData, 0644); err != nil {
		log.Error().
			Err(err).
			Str("output_file", outputPath).
			Msg("Failed to write output file")
		return fmt.Errorf("failed to write output file: %w", err)
	}

	log.Info().
		Str("output_file", outputPath).
		Int("bytes", len(outputData)).
		Msg("Results written to file")
	return nil
}
