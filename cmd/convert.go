package main

import (
	"encoding/json"
	"io"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/mapeo-verde/mapeo-verde-api/internal/geo"
)

var convertZone int

var convertCmd = &cobra.Command{
	Use:   "convert <x> <y>",
	Short: "Convert a UTM or lat/lng pair to WGS84 degrees",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		conv, err := convertPair(args[0], args[1], convertZone)
		if err != nil {
			return err
		}
		return writeConversion(os.Stdout, conv)
	},
}

// convertPair parses x and y and converts them. A zone in 1..60 forces a
// northern-hemisphere UTM conversion in that zone.
func convertPair(xs, ys string, zone int) (*geo.Conversion, error) {
	x, err := strconv.ParseFloat(xs, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "parse x %q", xs)
	}
	y, err := strconv.ParseFloat(ys, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "parse y %q", ys)
	}

	var conv *geo.Conversion
	switch {
	case zone == 0:
		conv = geo.ConvertToLatLong(&x, &y)
	case zone < 1 || zone > 60:
		return nil, eris.Errorf("zone must be between 1 and 60, got %d", zone)
	default:
		conv = geo.ConvertZone(&x, &y, zone)
	}
	if conv == nil {
		return nil, eris.Errorf("cannot convert (%s, %s)", xs, ys)
	}
	return conv, nil
}

func writeConversion(w io.Writer, conv *geo.Conversion) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(conv), "encode conversion")
}

func init() {
	convertCmd.Flags().IntVar(&convertZone, "zone", 0, "UTM zone (1-60); default guesses 13 or 14")
	rootCmd.AddCommand(convertCmd)
}
