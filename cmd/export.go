package main

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mapeo-verde/mapeo-verde-api/internal/export"
	"github.com/mapeo-verde/mapeo-verde-api/internal/geo"
	"github.com/mapeo-verde/mapeo-verde-api/internal/provider"
)

var (
	exportDataset string
	exportFormat  string
	exportOut     string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a dataset to an XLSX or GeoJSON file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkExportFlags(exportDataset, exportFormat); err != nil {
			return err
		}

		ctx := cmd.Context()
		env := initEnv(ctx, cfg)
		defer env.Close()

		state := env.Provider.Refresh(ctx)

		if exportFormat == "shp" {
			n, err := writeShapefile(exportOut, state, exportDataset)
			if err != nil {
				return err
			}
			zap.L().Info("shapefile written", zap.String("dataset", exportDataset), zap.String("file", exportOut), zap.Int("points", n))
			return nil
		}

		f, err := os.Create(exportOut)
		if err != nil {
			return eris.Wrapf(err, "create %s", exportOut)
		}
		if err := writeExport(f, state, exportDataset, exportFormat); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return eris.Wrapf(err, "close %s", exportOut)
		}

		zap.L().Info("export written",
			zap.String("dataset", exportDataset),
			zap.String("format", exportFormat),
			zap.String("file", exportOut),
		)
		return nil
	},
}

func checkExportFlags(dataset, format string) error {
	switch dataset {
	case "projects", "gazettes", "green-areas":
	default:
		return eris.Errorf("unknown dataset %q (projects, gazettes, green-areas)", dataset)
	}
	switch format {
	case "xlsx", "geojson", "shp":
	default:
		return eris.Errorf("unknown format %q (xlsx, geojson, shp)", format)
	}
	return nil
}

func writeExport(w io.Writer, state provider.State, dataset, format string) error {
	switch {
	case dataset == "green-areas" && format == "xlsx":
		return export.WriteGreenAreasXLSX(w, state.GreenAreas, "Areas verdes")
	case dataset == "green-areas":
		return export.WriteGeoJSON(w, geo.GreenAreaFeatures(state.GreenAreas))
	case dataset == "projects" && format == "xlsx":
		return export.WriteXLSX(w, state.Projects, "Boletines")
	case dataset == "projects":
		return export.WriteGeoJSON(w, geo.ProjectFeatures(state.Projects))
	case format == "xlsx":
		return export.WriteXLSX(w, state.Gazettes, "Gacetas")
	default:
		return export.WriteGeoJSON(w, geo.ProjectFeatures(state.Gazettes))
	}
}

func writeShapefile(path string, state provider.State, dataset string) (int, error) {
	switch dataset {
	case "green-areas":
		return export.WriteGreenAreasShapefile(path, state.GreenAreas)
	case "gazettes":
		return export.WriteShapefile(path, state.Gazettes)
	default:
		return export.WriteShapefile(path, state.Projects)
	}
}

func init() {
	exportCmd.Flags().StringVar(&exportDataset, "dataset", "projects", "dataset to export (projects, gazettes, green-areas)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "xlsx", "output format (xlsx, geojson, shp)")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output file")
	_ = exportCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(exportCmd)
}
