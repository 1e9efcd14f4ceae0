package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vertextoedge/himawari-fetch/internal/domain"
)

// BandCount is the number of AHI bands
const BandCount = 16

// Band presets
const (
	PresetVisible = "visible"
	PresetAll     = "all"
)

// VisibleBands returns the three visible bands
func VisibleBands() []string {
	return []string{"B01", "B02", "B03"}
}

// AllBands returns B01 through B16
func AllBands() []string {
	bands := make([]string, BandCount)
	for i := range bands {
		bands[i] = fmt.Sprintf("B%02d", i+1)
	}
	return bands
}

// NormalizeBand turns "3", "03", "b3" or "B03" into "B03"
func NormalizeBand(s string) (string, error) {
	trimmed := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "B")
	n, err := strconv.Atoi(trimmed)
	if err != nil || n < 1 || n > BandCount {
		return "", fmt.Errorf("%w: unknown band %q", domain.ErrInvalidInput, s)
	}
	return fmt.Sprintf("B%02d", n), nil
}

// ParseBands parses a preset name or a comma separated band list.
// An empty string selects all bands.
func ParseBands(spec string) ([]string, error) {
	switch strings.ToLower(strings.TrimSpace(spec)) {
	case "", PresetAll:
		return AllBands(), nil
	case PresetVisible:
		return VisibleBands(), nil
	}

	seen := make(map[string]bool)
	var bands []string
	for _, part := range strings.Split(spec, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		band, err := NormalizeBand(part)
		if err != nil {
			return nil, err
		}
		if !seen[band] {
			seen[band] = true
			bands = append(bands, band)
		}
	}
	if len(bands) == 0 {
		return nil, fmt.Errorf("%w: no bands in %q", domain.ErrInvalidInput, spec)
	}
	return bands, nil
}
