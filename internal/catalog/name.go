package catalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/vertextoedge/himawari-fetch/internal/domain"
)

// FileSuffix is the extension of every HSD segment file on the server
const FileSuffix = ".DAT.bz2"

const nameTimeLayout = "20060102_1504"

// Name is a parsed HSD file name such as
// HS_H09_20240101_0000_B03_FLDK_R05_S0110.DAT.bz2
type Name struct {
	Satellite  string    // H08, H09
	Time       time.Time // observation start, UTC
	Band       string    // B01..B16
	Area       string    // FLDK, JP01..JP04, R301..R305
	Resolution string    // R05, R10, R20
	Segment    string    // S0110 is segment 1 of 10
	Raw        string
}

// ParseName parses an HSD file name. Names without the .DAT.bz2 suffix are rejected.
func ParseName(name string) (Name, error) {
	if !strings.HasSuffix(name, FileSuffix) {
		return Name{}, fmt.Errorf("%w: %q is not an HSD file", domain.ErrInvalidInput, name)
	}

	parts := strings.Split(strings.TrimSuffix(name, FileSuffix), "_")
	if len(parts) != 8 || parts[0] != "HS" {
		return Name{}, fmt.Errorf("%w: %q is not an HSD file", domain.ErrInvalidInput, name)
	}

	t, err := time.ParseInLocation(nameTimeLayout, parts[2]+"_"+parts[3], time.UTC)
	if err != nil {
		return Name{}, fmt.Errorf("%w: bad timestamp in %q", domain.ErrInvalidInput, name)
	}

	band, err := NormalizeBand(parts[4])
	if err != nil {
		return Name{}, err
	}

	return Name{
		Satellite:  parts[1],
		Time:       t,
		Band:       band,
		Area:       parts[5],
		Resolution: parts[6],
		Segment:    parts[7],
		Raw:        name,
	}, nil
}

// String returns the original file name
func (n Name) String() string {
	return n.Raw
}
