package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var recycleParams []string

var recycleCmd = &cobra.Command{
	Use:   "recycle",
	Short: "Fetch recycle data from the backend feed",
	Long: `Call the recycle feed endpoint and print the returned JSON.

Parameters are sent as a JSON object. Values that parse as JSON (numbers,
booleans, arrays) are sent as such, anything else as a string.

Examples:
  datachat recycle
  datachat recycle --param region=north --param limit=20`,
	Args: cobra.NoArgs,
	RunE: runRecycle,
}

func init() {
	recycleCmd.Flags().StringArrayVarP(&recycleParams, "param", "p", nil, "request parameter as key=value (repeatable)")
}

func runRecycle(cmd *cobra.Command, args []string) error {
	params, err := parseParams(recycleParams)
	if err != nil {
		return err
	}

	payload, err := recycleClient.Execute(context.Background(), params)
	if err != nil {
		return fmt.Errorf("recycle: %w", err)
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, payload, "", "  "); err != nil {
		return fmt.Errorf("recycle: format response: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), buf.String())
	return nil
}

// parseParams turns key=value pairs into a JSON-ready map.
func parseParams(pairs []string) (map[string]any, error) {
	params := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid param %q: want key=value", pair)
		}

		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		params[key] = v
	}
	return params, nil
}
