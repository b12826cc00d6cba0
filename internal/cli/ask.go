package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/ragline/internal/models"
)

var (
	askTopK  int
	askToken string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about the indexed documents",
	Args:  cobra.ExactArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 4, "number of chunks used as context")
	askCmd.Flags().StringVar(&askToken, "token", "", "bearer token (default: signed with $JWT_SECRET when set)")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	body, _ := json.Marshal(map[string]any{"question": args[0], "top_k": askTopK})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+"/api/query", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	token := askToken
	if token == "" && cfg.JWTSecret != "" {
		if token, err = signToken(cfg.JWTSecret, "ragctl", tokenTTL); err != nil {
			return err
		}
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call query endpoint: %w", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("query failed (%d): %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	var ans models.Answer
	if err := json.Unmarshal(data, &ans); err != nil {
		return fmt.Errorf("decode answer: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), ans.Text)
	if len(ans.Sources) > 0 {
		fmt.Fprintln(cmd.OutOrStdout())
		fmt.Fprintln(cmd.OutOrStdout(), "Sources: "+strings.Join(ans.Sources, ", "))
	}
	return nil
}
