package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/ragline/internal/app"
)

var ingestContainer string

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Upload a file and ingest it",
	Long: `Uploads the file to the configured object store and asks the server to
ingest it through POST /api/ingest. The server must run in local mode.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestContainer, "container", "c", "", "target container (default $BUCKET_NAME)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	container := ingestContainer
	if container == "" {
		container = cfg.BucketName
	}
	name := filepath.Base(path)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	objects, err := app.NewObjectClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("object store: %w", err)
	}
	if err := objects.EnsureContainer(ctx, container); err != nil {
		return fmt.Errorf("ensure container %s: %w", container, err)
	}
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	url, err := objects.UploadFile(ctx, container, name, data, contentType)
	if err != nil {
		return fmt.Errorf("upload %s: %w", name, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s to %s\n", name, url)

	body, _ := json.Marshal(map[string]string{"url": url})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+"/api/ingest", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call ingest endpoint: %w", err)
	}
	defer resp.Body.Close()
	text, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ingest failed (%d): %s", resp.StatusCode, bytes.TrimSpace(text))
	}
	fmt.Fprint(cmd.OutOrStdout(), string(text))
	return nil
}
