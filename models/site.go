package models

import (
	"github.com/twpayne/go-geom"
)

// Site is a fixed geographic sampling point. Lon/Lat are in the native
// reference frame of the CHELSA rasters (WGS84 degrees) and are the only
// coordinates used for sampling; the UTM pair is carried for field
// documentation and ends up in the output table unchanged.
type Site struct {
	Stream   string  `yaml:"stream"`
	Code     string  `yaml:"code"`
	Name     string  `yaml:"name"`
	Lon      float64 `yaml:"lon"`
	Lat      float64 `yaml:"lat"`
	UTMEast  float64 `yaml:"utm_east"`
	UTMNorth float64 `yaml:"utm_north"`
}

// Coord returns the sampling coordinate in raster space.
func (s *Site) Coord() geom.Coord {
	return geom.Coord{s.Lon, s.Lat}
}
