package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/xsync/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config directory with an example config",
	RunE:  initAction,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func initAction(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	configPath := filepath.Join(configDir, config.DefaultConfigFile)
	wrote, err := writeIfNotExists(out, configPath, []byte(exampleConfig))
	if err != nil {
		return err
	}

	if !wrote {
		fmt.Fprintf(out, "Config directory %s already initialized.\n", configDir)
		return nil
	}
	fmt.Fprintf(out, "Initialized %s. Export %s before running xsync.\n", configDir, config.DefaultTokenEnv)
	return nil
}

// writeIfNotExists writes data to path if the file does not exist.
// Returns true if the file was created.
func writeIfNotExists(out io.Writer, path string, data []byte) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(out, "  exists: %s\n", path)
		return false, nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(out, "  created: %s\n", path)
	return true, nil
}

const exampleConfig = `# xsync configuration

# Accounts to follow, without the leading @.
users:
  - "your_account_here"

# Hashtags to search, without the leading #. Recent search covers the last 7 days.
hashtags: []

# Ignore posts created before this date (YYYY-MM-DD or RFC 3339).
start_date: ""

# Drop posts older than this: <number><d|w|m|y>, e.g. 30d, 2w, 1.5m, 1y.
drop_after: ""

# Posts containing any of these words (case-insensitive) are skipped.
dirty_words: []

include_header: true
no_delete: false

# Optional RSS mirror for account timelines, e.g. a Nitter instance.
mirror_url: ""

api:
  base_url: https://api.x.com
  token_env: X_BEARER_TOKEN
  requests_per_second: 1
  max_pages: 5

storage:
  path: .xsync/xsync.db

# Matches in post bodies are replaced with [REDACTED]. This also applies with
# include_header: false, so bodies are then no longer verbatim.
privacy:
  redact:
    enabled: false
    patterns: []

log:
  level: info
  format: text
`
