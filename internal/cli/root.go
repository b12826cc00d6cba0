// Package cli implements ragctl, the command line client for a running
// ragline server.
package cli

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/ragline/internal/config"
)

var (
	apiURL     string
	cfg        *config.Config
	httpClient = &http.Client{Timeout: 10 * time.Minute}
)

var rootCmd = &cobra.Command{
	Use:   "ragctl",
	Short: "Upload documents to ragline and ask questions about them",
	Long: `ragctl talks to a running ragline server. It reads the same environment
(and .env file) as the server, so uploads land in the configured object store.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		if apiURL == "" {
			apiURL = cfg.APIURL
		}
		apiURL = strings.TrimRight(apiURL, "/")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "ragline server URL (default $API_URL)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
