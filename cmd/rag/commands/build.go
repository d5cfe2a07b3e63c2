package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"manualrag/internal/pipeline"
)

// NewExtractCmd creates the extract command.
func NewExtractCmd() *cobra.Command {
	return newStageCmd("extract", "Extract cleaned text from the manual PDF",
		func(r *pipeline.Runner) func(context.Context) (pipeline.StageResult, error) { return r.Extract }, "lines")
}

// NewChunkCmd creates the chunk command.
func NewChunkCmd() *cobra.Command {
	return newStageCmd("chunk", "Split the manual text into hierarchical chunks",
		func(r *pipeline.Runner) func(context.Context) (pipeline.StageResult, error) { return r.Chunk }, "chunks")
}

// NewIndexCmd creates the index command.
func NewIndexCmd() *cobra.Command {
	return newStageCmd("index", "Embed the chunks and write the vector index",
		func(r *pipeline.Runner) func(context.Context) (pipeline.StageResult, error) { return r.Index }, "records")
}

func newStageCmd(name, short string, stage func(*pipeline.Runner) func(context.Context) (pipeline.StageResult, error), unit string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Long: short + `.

The stage is skipped when its output file already exists; delete the file to
run it again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			r, err := a.runner(cmd.Context())
			if err != nil {
				return err
			}
			res, err := stage(r)(cmd.Context())
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			return printStage(cmd, name, unit, res)
		},
	}
}

// NewBuildCmd creates the build command.
func NewBuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Run extract, chunk and index in order",
		Long: `Run every pipeline stage in order: PDF to text, text to chunks, chunks
to the vector index. Stages whose output already exists are skipped.`,
		Args: cobra.NoArgs,
		RunE: runBuild,
	}
}

func runBuild(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	r, err := a.runner(cmd.Context())
	if err != nil {
		return err
	}
	if err := r.Build(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Index ready at %s\n", a.cfg.Paths.Index)
	return nil
}

func printStage(cmd *cobra.Command, name, unit string, res pipeline.StageResult) error {
	if outputFormat == "json" {
		data, err := json.Marshal(map[string]any{"stage": name, "skipped": res.Skipped, unit: res.Count})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", data)
		return nil
	}
	if res.Skipped {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: output exists, skipped\n", name)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: wrote %d %s\n", name, res.Count, unit)
	return nil
}
