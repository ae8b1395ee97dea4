package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ppiankov/xsync/internal/connector"
)

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Show the credentials the connector needs and how to get them",
	RunE:  credentialsAction,
}

func init() {
	rootCmd.AddCommand(credentialsCmd)
}

func credentialsAction(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	creds := connector.New(nil).RequiredCredentials()

	names := make([]string, 0, len(creds))
	for name := range creds {
		names = append(names, name)
	}
	sort.Strings(names)

	for i, name := range names {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "%s\n%s\n", name, creds[name])
	}
	return nil
}
