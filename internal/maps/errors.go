package maps

import "errors"

var (
	// ErrNoDataYet is returned when a raster slot has not been populated.
	ErrNoDataYet = errors.New("no maps retrieved yet")

	// ErrOutOfBoundOffset is returned when an instant lies outside the slices of a series.
	ErrOutOfBoundOffset = errors.New("map offset out of bounds")

	// ErrOutOfBoundCoords is returned when a position projects outside a slice.
	ErrOutOfBoundCoords = errors.New("map coordinates out of bounds")

	// ErrNoKnownColorInSample is returned when no pixel of a sample area is in the legend.
	ErrNoKnownColorInSample = errors.New("no known color in map sample")

	// ErrFetchFailed is returned when retrieving a raster from upstream fails.
	ErrFetchFailed = errors.New("map fetch failed")

	// ErrDecodeFailed is returned when a retrieved raster cannot be decoded.
	ErrDecodeFailed = errors.New("map decode failed")
)
