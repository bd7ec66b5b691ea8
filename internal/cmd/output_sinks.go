package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/trendrelay/trendrelay/internal/output"
)

type outputSink struct {
	writer io.Writer
	close  func() error
	path   string
}

// addOutputFlags registers --output-format and --out on a listing command.
func addOutputFlags(cmd *cobra.Command, fallback output.Format) {
	cmd.Flags().StringP("output-format", "o", string(fallback), "output format: table, markdown, json or yaml")
	cmd.Flags().String("out", "", "write output to a file instead of stdout")
}

func resolveOutputFormat(cmd *cobra.Command, fallback output.Format) (output.Format, error) {
	value, err := cmd.Flags().GetString("output-format")
	if err != nil {
		return "", err
	}
	return output.ParseFormat(value, fallback)
}

// writeOutput sends rendered text to the --out file, or to the command's stdout.
func writeOutput(cmd *cobra.Command, rendered string) error {
	path, err := cmd.Flags().GetString("out")
	if err != nil {
		return err
	}

	sink, err := openSink(cmd.OutOrStdout(), path)
	if err != nil {
		return err
	}
	defer func() { _ = sink.close() }()

	_, err = io.WriteString(sink.writer, rendered)
	return err
}

func openSink(stdout io.Writer, path string) (*outputSink, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" || trimmed == "-" {
		return &outputSink{writer: stdout, close: func() error { return nil }, path: "-"}, nil
	}

	if err := os.MkdirAll(filepath.Dir(trimmed), 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	// Output may contain channel names and endpoints; keep it private to the user.
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, err
	}
	return &outputSink{writer: file, close: file.Close, path: trimmed}, nil
}
