package types

import "fmt"

// Coordinate is a latitude/longitude pair in degrees
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// BoundingBox is a rectangular search area
type BoundingBox struct {
	BottomLeft Coordinate `json:"bottom_left"`
	TopRight   Coordinate `json:"top_right"`
}

// Validate checks corner ordering and coordinate ranges
func (b BoundingBox) Validate() error {
	for _, c := range []Coordinate{b.BottomLeft, b.TopRight} {
		if c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon > 180 {
			return fmt.Errorf("coordinate out of range: %v,%v", c.Lat, c.Lon)
		}
	}
	if b.BottomLeft.Lat > b.TopRight.Lat {
		return fmt.Errorf("bottom-left latitude %v above top-right %v", b.BottomLeft.Lat, b.TopRight.Lat)
	}
	return nil
}

// Contains reports whether c lies inside the box, edges included
func (b BoundingBox) Contains(c Coordinate) bool {
	return c.Lat >= b.BottomLeft.Lat && c.Lat <= b.TopRight.Lat &&
		c.Lon >= b.BottomLeft.Lon && c.Lon <= b.TopRight.Lon
}

// Key returns a stable string form used in region state keys
func (b BoundingBox) Key() string {
	return fmt.Sprintf("%g,%g,%g,%g", b.BottomLeft.Lat, b.BottomLeft.Lon, b.TopRight.Lat, b.TopRight.Lon)
}
