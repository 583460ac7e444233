package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pkg.jsn.cam/wordmill/internal/controller"
	"pkg.jsn.cam/wordmill/internal/controlplane"
	"pkg.jsn.cam/wordmill/pkg/wordmill"
)

// Interactive mode defaults.
const (
	interactiveMappers  = 4
	interactiveReducers = 2
)

// runInteractive prompts for the three directory paths and runs a full
// controller pass with defaults. Empty output and temp paths default to
// sibling directories of the input.
func runInteractive() error {
	fmt.Println("WELCOME TO WORDMILL (interactive mode)")

	reader := bufio.NewReader(os.Stdin)

	inputDir, err := prompt(reader, "Enter the folder path for the directory to be processed: ")
	if err != nil {
		return err
	}
	if inputDir == "" {
		return fmt.Errorf("input directory is required")
	}

	parent := filepath.Dir(inputDir)

	outputDir, err := prompt(reader, "Enter the folder path for the output directory (empty for default): ")
	if err != nil {
		return err
	}
	if outputDir == "" {
		outputDir = filepath.Join(parent, "outputFolder")
	}

	tempDir, err := prompt(reader, "Enter the folder path for the temporary directory (empty for default): ")
	if err != nil {
		return err
	}
	if tempDir == "" {
		tempDir = filepath.Join(parent, "tempFolder")
	}

	fmt.Printf("Input Folder: %s\n", inputDir)
	fmt.Printf("Output Folder: %s\n", outputDir)
	fmt.Printf("Temporary Folder: %s\n", tempDir)
	fmt.Printf("Running with %d mappers and %d reducers...\n", interactiveMappers, interactiveReducers)

	logger, closeLog, err := openLogger("")
	if err != nil {
		return err
	}
	defer closeLog()

	cfg := wordmill.NewJobConfig(inputDir, outputDir, tempDir, interactiveMappers, interactiveReducers)

	c, err := controller.New(cfg, controlplane.NewLocalRunner(cfg, logger), logger,
		controller.WithProgress(progressReporter()))
	if err != nil {
		return err
	}

	if err := c.Run(); err != nil {
		return err
	}

	fmt.Printf("Done. Results in %s\n", filepath.Join(outputDir, cfg.FinalOutputName))

	return nil
}

func prompt(reader *bufio.Reader, text string) (string, error) {
	fmt.Print(text)

	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read input: %w", err)
	}

	return strings.TrimSpace(line), nil
}
