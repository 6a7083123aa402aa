package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/yurifrl/kupa/pkg/config"
	"github.com/yurifrl/kupa/pkg/parser"
	"github.com/yurifrl/kupa/pkg/workbook"
)

const outputSuffix = "-kupa.xlsx"

// Processor converts every report in a directory into its own workbook.
type Processor struct {
	config *config.Config
	parser *parser.Parser
	logger *log.Logger
}

func NewProcessor(config *config.Config, parser *parser.Parser, logger *log.Logger) *Processor {
	return &Processor{
		config: config,
		parser: parser,
		logger: logger,
	}
}

// ProcessDirectory writes one workbook per report and returns the paths
// written. A file that fails is logged and does not stop the others.
func (p *Processor) ProcessDirectory(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("error reading directory: %w", err)
	}
	if p.config.OutputPath != "" {
		if err := os.MkdirAll(p.config.OutputPath, 0o755); err != nil {
			return nil, fmt.Errorf("error creating output directory: %w", err)
		}
	}

	var written []string
	for _, entry := range entries {
		out, err := p.processEntry(dir, entry)
		if err != nil {
			p.logger.Warn("failed to process entry", "file", entry.Name(), "error", err)
			continue
		}
		if out != "" {
			written = append(written, out)
		}
	}
	return written, nil
}

func (p *Processor) processEntry(dir string, entry os.DirEntry) (string, error) {
	if entry.IsDir() {
		return "", nil
	}

	fileName := strings.ToLower(entry.Name())
	if !strings.HasSuffix(fileName, ".html") && !strings.HasSuffix(fileName, ".htm") {
		return "", nil
	}

	inputPath := filepath.Join(dir, entry.Name())
	outFile := p.determineOutputPath(inputPath, entry.Name())
	p.logger.Info("processing file", "path", inputPath)

	if err := p.processFile(inputPath, outFile); err != nil {
		return "", err
	}

	p.logger.Info("processed file successfully", "input", inputPath, "output", outFile)
	return outFile, nil
}

func (p *Processor) determineOutputPath(inputPath, fileName string) string {
	ext := filepath.Ext(fileName)
	baseName := strings.TrimSuffix(fileName, ext)
	if p.config.OutputPath != "" {
		return filepath.Join(p.config.OutputPath, baseName+outputSuffix)
	}
	return strings.TrimSuffix(inputPath, ext) + outputSuffix
}

func (p *Processor) processFile(inputPath, outputPath string) error {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("error reading file: %w", err)
	}

	res, err := p.parser.Parse(data)
	if err != nil {
		return fmt.Errorf("error parsing file: %w", err)
	}
	p.logger.Debug("parsed report", "path", inputPath, "transactions", len(res.Transactions), "skipped", res.Skipped)

	output, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("error creating output file: %w", err)
	}
	defer output.Close()

	if err := workbook.Write(output, res.Transactions); err != nil {
		return fmt.Errorf("error writing output file: %w", err)
	}
	return nil
}
