package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/crxsrc/pkg/crxsrc/fetch"
)

var fetchOutput string

var fetchCmd = &cobra.Command{
	Use:   "fetch <store-url|s3://bucket/key>",
	Short: "Download an extension package",
	Long: `Download an extension package.

A web store detail URL is resolved to its 32 letter extension id and the
package is downloaded from the store's update endpoint as <id>.crx.
An s3:// URL is read with the AWS SDK using the usual credential chain and
the fetch.s3 settings from the config file.

Examples:
  crxsrc fetch https://chromewebstore.google.com/detail/name/<id>
  crxsrc fetch s3://artifacts/extensions/ext.crx -o ext.crx`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "", "destination file")
	rootCmd.AddCommand(fetchCmd)
}

// runFetch is the fetch command handler.
func runFetch(cmd *cobra.Command, args []string) error {
	source := args[0]

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []fetch.Option{fetch.WithProdVersion(cfg.Fetch.ProdVersion)}
	if strings.HasPrefix(source, "s3://") {
		client, err := fetch.NewS3Client(ctx, fetch.S3Options{
			Region:       cfg.Fetch.S3.Region,
			Endpoint:     cfg.Fetch.S3.Endpoint,
			UsePathStyle: cfg.Fetch.S3.UsePathStyle,
		})
		if err != nil {
			return err
		}
		opts = append(opts, fetch.WithS3Client(client))
	}

	path, err := fetch.New(opts...).Fetch(ctx, source, fetchOutput)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", source, err)
	}

	printInfo("Saved %s", path)
	return nil
}
