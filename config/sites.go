package config

import "chelsa_sampler/models"

// DefaultSites is the fixed monitoring network used when no sites.yaml is
// present. Lon/Lat sample the rasters; the UTM zone 13N pair documents the
// field locations and is written through to the output table.
func DefaultSites() []models.Site {
	return []models.Site{
		{Stream: "boulder", Code: "BC1", Name: "Boulder Creek above Fourmile", Lon: -105.4301, Lat: 40.0083, UTMEast: 463290, UTMNorth: 4429180},
		{Stream: "boulder", Code: "BC2", Name: "Boulder Creek at Orodell", Lon: -105.3296, Lat: 40.0051, UTMEast: 471870, UTMNorth: 4428800},
		{Stream: "stvrain", Code: "SV1", Name: "South St. Vrain near Ward", Lon: -105.5097, Lat: 40.0702, UTMEast: 456520, UTMNorth: 4436070},
		{Stream: "stvrain", Code: "SV2", Name: "Middle St. Vrain at Peaceful Valley", Lon: -105.5353, Lat: 40.1311, UTMEast: 454370, UTMNorth: 4442840},
		{Stream: "glacier", Code: "GC1", Name: "North Boulder Creek below Green Lakes", Lon: -105.5980, Lat: 40.0428, UTMEast: 448970, UTMNorth: 4433050},
		{Stream: "glacier", Code: "GC2", Name: "Como Creek at C1", Lon: -105.5441, Lat: 40.0354, UTMEast: 453570, UTMNorth: 4432210},
	}
}
