package raster

import (
	"errors"
	"fmt"
	"time"
)

// ErrEmptyCollection is returned when a temporal reduction has no images to
// reduce. Missing source data is never gap-filled.
var ErrEmptyCollection = errors.New("raster: no images in collection window")

// GridMismatchError is returned when the operands of an expression do not
// share a spatial reference. Callers must realign their inputs.
type GridMismatchError struct {
	Op   string
	Want Grid
	Got  Grid
}

func (e *GridMismatchError) Error() string {
	return fmt.Sprintf("raster: %s: grid mismatch: want %s, got %s", e.Op, e.Want, e.Got)
}

// BandNotFoundError is returned when an image in a collection does not carry
// a requested band.
type BandNotFoundError struct {
	Band string
	Time time.Time
}

func (e *BandNotFoundError) Error() string {
	return fmt.Sprintf("raster: band %q not found in image at %s", e.Band, e.Time.UTC().Format(time.RFC3339))
}

// DuplicateBandError is returned when two images at the same time both
// carry a band, as happens when input files overlap in time.
type DuplicateBandError struct {
	Band string
	Time time.Time
}

func (e *DuplicateBandError) Error() string {
	return fmt.Sprintf("raster: band %q appears twice at %s", e.Band, e.Time.UTC().Format(time.RFC3339))
}
