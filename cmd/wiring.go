package cmd

import (
	"context"
	"fmt"

	"mediaenrich/internal/adapter/outbound/googleapi"
	"mediaenrich/internal/adapter/outbound/repository"
	"mediaenrich/internal/adapter/outbound/vertex"
	"mediaenrich/internal/application/common/slogger"
	"mediaenrich/internal/application/service"
	"mediaenrich/internal/config"
	"mediaenrich/internal/port/outbound"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/oauth2"
)

func databaseConfig(cfg *config.Config) repository.DatabaseConfig {
	return repository.DatabaseConfig{
		Host:           cfg.Database.Host,
		Port:           cfg.Database.Port,
		Database:       cfg.Database.Name,
		Username:       cfg.Database.User,
		Password:       cfg.Database.Password,
		Schema:         cfg.Database.Schema,
		MaxConnections: cfg.Database.MaxConnections,
		MinConnections: cfg.Database.MinConnections,
		SSLMode:        cfg.Database.SSLMode,
	}
}

func setupDatabaseConnection(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pool, err := repository.NewDatabaseConnection(ctx, databaseConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("database unreachable at %s:%d: %w", cfg.Database.Host, cfg.Database.Port, err)
	}
	return pool, nil
}

// tokenSource returns ADC credentials when useADC is set. A nil source means
// the client authenticates with its API key.
func tokenSource(ctx context.Context, useADC bool, cache *oauth2.TokenSource) (oauth2.TokenSource, error) {
	if !useADC {
		return nil, nil //nolint:nilnil // API key authentication
	}
	if *cache != nil {
		return *cache, nil
	}
	ts, err := googleapi.DefaultTokenSource(ctx)
	if err != nil {
		return nil, err
	}
	*cache = ts
	return ts, nil
}

func newEmbedder(ctx context.Context, cfg *config.Config, adc *oauth2.TokenSource) (*vertex.Client, error) {
	ts, err := tokenSource(ctx, cfg.Vertex.UseADC, adc)
	if err != nil {
		return nil, err
	}
	client, err := vertex.NewClient(vertex.Config{
		Project:     cfg.Vertex.Project,
		Location:    cfg.Vertex.Location,
		Model:       cfg.Vertex.Model,
		Endpoint:    cfg.Vertex.Endpoint,
		APIKey:      cfg.Vertex.APIKey,
		TokenSource: ts,
		Timeout:     cfg.Vertex.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding client: %w", err)
	}

	slogger.InfoNoCtx("Using Vertex AI multimodal embeddings", slogger.Fields{
		"project":  cfg.Vertex.Project,
		"location": cfg.Vertex.Location,
		"model":    cfg.Vertex.Model,
		"adc":      cfg.Vertex.UseADC,
	})
	return client, nil
}

func newEmbeddingGenerator(
	embedder outbound.MultimodalEmbedder,
	fetcher outbound.MediaFetcher,
	cfg *config.Config,
) *service.EmbeddingGenerator {
	return service.NewEmbeddingGenerator(embedder, fetcher, service.EmbeddingGeneratorConfig{
		Dimension:     cfg.Vertex.Dimension,
		MaxTextBytes:  cfg.Embedding.MaxTextBytes,
		MaxImageBytes: cfg.Media.MaxImageBytes,
		FetchTimeout:  cfg.Media.ImageTimeout,
	})
}
