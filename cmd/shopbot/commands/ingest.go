package commands

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/liliang-cn/shopbot/internal/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var ingestBatchSize int

var ingestCmd = &cobra.Command{
	Use:   "ingest <catalog.jsonl>",
	Short: "Load a JSON-lines product catalog into the vector index",
	Args:  cobra.ExactArgs(1),
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().IntVar(&ingestBatchSize, "batch", service.DefaultIngestBatchSize, "products per index upsert")
	rootCmd.AddCommand(ingestCmd)
}

// dimensionProbe is embedded once to learn the vector size for a new collection
const dimensionProbe = "vitamin"

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, "")
	if err != nil {
		return err
	}
	defer a.Close()

	if a.qdrant != nil {
		vec, err := a.client.Embed(ctx, dimensionProbe)
		if err != nil {
			return fmt.Errorf("probe embedding dimension: %w", err)
		}
		if err := a.qdrant.EnsureCollection(ctx, len(vec)); err != nil {
			return fmt.Errorf("ensure collection: %w", err)
		}
	}

	start := time.Now()
	stored, err := service.NewIngestService(a.gateway, ingestBatchSize, a.logger).IngestFile(ctx, args[0])
	if err != nil {
		a.logger.Error("Ingest failed", zap.Int("stored", stored), zap.Error(err))
		return err
	}

	color.Green("Stored %d products in %s", stored, time.Since(start).Round(time.Millisecond))
	return nil
}
