package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"mediaenrich/internal/adapter/outbound/mediafetch"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
)

// embedQueryOutput is printed as JSON so the vector can be piped into a similarity query.
type embedQueryOutput struct {
	Text      string    `json:"text"`
	Model     string    `json:"model"`
	Dimension int       `json:"dimension"`
	Embedding []float32 `json:"embedding"`
}

func newEmbedQueryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "embed-query [text]",
		Short: "Embed a search query in the same space as post embeddings",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := GetConfig()
			if cfg.Vertex.Project == "" {
				return fmt.Errorf("vertex.project is required")
			}

			var adc oauth2.TokenSource
			embedder, err := newEmbedder(cmd.Context(), cfg, &adc)
			if err != nil {
				return err
			}
			generator := newEmbeddingGenerator(embedder, mediafetch.NewHTTPFetcher(cfg.Media.ImageTimeout), cfg)

			text := strings.Join(args, " ")
			embedding, err := generator.GenerateText(cmd.Context(), text)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(embedQueryOutput{
				Text:      text,
				Model:     cfg.Vertex.Model,
				Dimension: embedding.Dimension(),
				Embedding: embedding.Values(),
			})
		},
	}
}

func init() { //nolint:gochecknoinits // cobra command registration
	rootCmd.AddCommand(newEmbedQueryCmd())
}
