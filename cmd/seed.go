package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mapeo-verde/mapeo-verde-api/internal/mapper"
	"github.com/mapeo-verde/mapeo-verde-api/internal/provider"
	"github.com/mapeo-verde/mapeo-verde-api/internal/static"
	"github.com/mapeo-verde/mapeo-verde-api/internal/store"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the fallbacks and the bulletin and gazette files into the backend",
	Long: "Writes the embedded green areas and events plus the mapped bulletin and gazette files " +
		"to the relational tables, and stores the raw files in the JSON document tables.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		backend, err := requireBackend(ctx)
		if err != nil {
			return err
		}
		defer backend.Close() //nolint:errcheck

		if err := backend.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate")
		}

		loader := static.NewLoader(newFetcher(cfg), cfg.Static.BaseURL, cfg.Static.Dir)
		var assets provider.AssetLoader
		if loader.Configured() {
			assets = loader
		}

		n, err := seedBackend(ctx, backend, assets, cfg.Static.BoletinesFile, cfg.Static.GacetasFile)
		if err != nil {
			return err
		}
		zap.L().Info("seed complete", zap.Int64("rows", n))
		return nil
	},
}

// seedBackend writes the static fallbacks and, when assets is non-nil, the
// two project files. A file that cannot be loaded is skipped.
func seedBackend(ctx context.Context, backend store.Backend, assets provider.AssetLoader, boletinesFile, gacetasFile string) (int64, error) {
	fb := static.Fallbacks()
	data := store.SeedData{
		GreenAreas: fb.GreenAreas,
		Events:     fb.Events,
	}

	if assets != nil {
		if raw := loadAsset(ctx, assets, boletinesFile); raw != nil {
			data.Projects = mapper.MapBoletinesToProjects(raw)
			if err := backend.PutDocument(ctx, store.TableBoletinesJSON, boletinesFile, raw); err != nil {
				return 0, eris.Wrap(err, "seed boletines document")
			}
		}
		if raw := loadAsset(ctx, assets, gacetasFile); raw != nil {
			data.Gazettes = mapper.MapGacetasToDataset(raw)
			if err := backend.PutDocument(ctx, store.TableGacetasJSON, gacetasFile, raw); err != nil {
				return 0, eris.Wrap(err, "seed gacetas document")
			}
		}
	}

	n, err := backend.Seed(ctx, data)
	if err != nil {
		return 0, eris.Wrap(err, "seed tables")
	}
	zap.L().Info("seeded tables",
		zap.Int("green_areas", len(data.GreenAreas)),
		zap.Int("projects", len(data.Projects)),
		zap.Int("gazettes", len(data.Gazettes)),
		zap.Int("events", len(data.Events)),
	)
	return n, nil
}

func loadAsset(ctx context.Context, assets provider.AssetLoader, name string) []byte {
	raw, err := assets.Load(ctx, name)
	if err != nil {
		zap.L().Warn("seed: skipping file", zap.String("file", name), zap.Error(err))
		return nil
	}
	return raw
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
