package viz

import (
	"encoding/json"
	"fmt"
	"os"
)

// PlotConfig carries render tuning loadable from JSON. The schema
// uses optional pointer fields so a file can override any subset of
// the defaults.
type PlotConfig struct {
	ContourResolution *int     `json:"contour_resolution,omitempty"`
	ContourLevels     *int     `json:"contour_levels,omitempty"`
	HistogramBins     *int     `json:"histogram_bins,omitempty"`
	BarHeight         *float64 `json:"bar_height,omitempty"`
	GridRows          *int     `json:"grid_rows,omitempty"`
	GridCols          *int     `json:"grid_cols,omitempty"`
	CellSize          *int     `json:"cell_size,omitempty"`
	LevelSetGridRes   *int     `json:"levelset_grid_res,omitempty"`
	MaxCloud          *int     `json:"max_cloud,omitempty"`
	Upload            *bool    `json:"upload,omitempty"`
}

// LoadPlotConfig reads a JSON plot configuration. A missing file is
// not an error: it returns an empty config so defaults apply.
func LoadPlotConfig(path string) (*PlotConfig, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &PlotConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read plot config: %w", err)
	}
	var cfg PlotConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse plot config %s: %w", path, err)
	}
	return &cfg, nil
}

// ContourOptions materializes contour options with the config's
// overrides applied to the defaults.
func (c *PlotConfig) ContourOptions() ContourOptions {
	o := DefaultContourOptions()
	if c.ContourResolution != nil {
		o.Resolution = *c.ContourResolution
	}
	if c.ContourLevels != nil {
		o.Contours = *c.ContourLevels
	}
	if c.HistogramBins != nil {
		o.Bins = *c.HistogramBins
	}
	if c.BarHeight != nil {
		o.BarHeight = *c.BarHeight
	}
	if c.Upload != nil {
		o.Upload = *c.Upload
	}
	return o
}

// ImageGridOptions materializes montage options.
func (c *PlotConfig) ImageGridOptions() ImageGridOptions {
	o := DefaultImageGridOptions()
	if c.GridRows != nil {
		o.Rows = *c.GridRows
	}
	if c.GridCols != nil {
		o.Cols = *c.GridCols
	}
	if c.CellSize != nil {
		o.CellSize = *c.CellSize
	}
	if c.Upload != nil {
		o.Upload = *c.Upload
	}
	return o
}

// LevelSetOptions materializes 3D extraction options over the given
// defaults.
func (c *PlotConfig) LevelSetOptions(base LevelSetOptions) LevelSetOptions {
	if c.LevelSetGridRes != nil {
		base.GridRes = *c.LevelSetGridRes
	}
	if c.MaxCloud != nil {
		base.MaxCloud = *c.MaxCloud
	}
	if c.Upload != nil {
		base.Upload = *c.Upload
	}
	return base
}
