package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	errwrap "github.com/trendrelay/trendrelay/internal/errors"
	"github.com/trendrelay/trendrelay/internal/message"
	"github.com/trendrelay/trendrelay/internal/relay"
)

var (
	sendChannel string
	sendDryRun  bool
)

var sendCmd = &cobra.Command{
	Use:   "send [file]",
	Short: "Format a payload and deliver it once",
	Long: `Format one TrendMiner payload and deliver it to a channel.

The input is either a full request body ({"tm_data": ...}) or the tm_data
value itself. It is read from the named file, or from stdin when the file
is "-" or omitted. With --dry-run the message is printed instead of sent.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "-"
		if len(args) == 1 {
			path = args[0]
		}

		raw, err := readInput(cmd.InOrStdin(), path)
		if err != nil {
			return errwrap.WrapInvalidInput(cmd.Context(), err, "failed to read payload")
		}
		tmData := extractTmData(raw)

		if sendDryRun {
			content := message.Format(message.DecodePayload(tmData), time.Now())
			_, err := fmt.Fprintln(cmd.OutOrStdout(), message.WithWarning(content))
			return err
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		svc, _ := newRelay(cfg, nil)

		result, err := svc.Relay(cmd.Context(), sendChannel, tmData)
		if err != nil {
			return errwrap.WrapExternalService(cmd.Context(), err, "delivery failed")
		}

		out := cmd.OutOrStdout()
		if result.Response == nil {
			_, err = fmt.Fprintln(out, "{}")
			return err
		}
		encoded, err := json.Marshal(result.Response)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(encoded))
		if err == nil && !result.Response.OK() {
			return errwrap.WrapExternalService(cmd.Context(),
				fmt.Errorf("errcode %d: %s", result.Response.ErrCode, result.Response.ErrMsg),
				"webhook rejected the message")
		}
		return err
	},
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if strings.TrimSpace(path) == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

// extractTmData returns the tm_data member of a request body, or the whole
// input when it is not a request body.
func extractTmData(raw []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &body); err == nil {
		if tmData, ok := body["tm_data"]; ok {
			return tmData
		}
	}
	return json.RawMessage(trimmed)
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringVar(&sendChannel, "channel", relay.DefaultChannel, "channel to deliver to")
	sendCmd.Flags().BoolVar(&sendDryRun, "dry-run", false, "print the formatted message without sending it")
}
