package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Compute an update set for a host over stdin and stdout",
	Long: `update reads {"lastUsed": <ms>, "existingFiles": {"<id>": <ms>, ...}} from stdin
and writes the resulting {"<id>": {"action": "add"|"delete", "content": "..."}} map to stdout.
Logs go to stderr.`,
	RunE: updateAction,
}

func init() {
	rootCmd.AddCommand(updateCmd)
}

type updateRequest struct {
	LastUsed      int64            `json:"lastUsed"`
	ExistingFiles map[string]int64 `json:"existingFiles"`
}

func updateAction(cmd *cobra.Command, _ []string) error {
	var req updateRequest
	if err := json.NewDecoder(cmd.InOrStdin()).Decode(&req); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}

	cfg, logger, err := loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	c, err := openConnector(ctx, cfg, logger)
	if err != nil {
		return err
	}

	updates := c.Update(ctx, req.LastUsed, req.ExistingFiles)

	if err := json.NewEncoder(cmd.OutOrStdout()).Encode(updates); err != nil {
		return fmt.Errorf("encode updates: %w", err)
	}
	return nil
}
