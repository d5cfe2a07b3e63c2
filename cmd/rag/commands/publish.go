package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewPublishCmd creates the publish command.
func NewPublishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Copy the local index into a Qdrant collection",
		Long: `Load the Parquet index and replace the configured Qdrant collection with
its records. Set vector_store.type to qdrant afterwards to search the
collection instead of the local file.

Example:
  rag publish --config config.yaml`,
		Args: cobra.NoArgs,
		RunE: runPublish,
	}
}

func runPublish(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	store, err := a.loadIndex()
	if err != nil {
		return err
	}
	m, err := a.mirror()
	if err != nil {
		return fmt.Errorf("connecting to qdrant: %w", err)
	}
	if err := m.Publish(cmd.Context(), store.Records()); err != nil {
		return fmt.Errorf("publishing: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Published %d records\n", store.Len())
	return nil
}
