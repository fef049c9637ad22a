package models

// Measurement is one sampled value for one site and one monthly raster.
// Celsius is nil when extraction failed for that artifact; the row is still
// emitted so the dataset stays rectangular (|artifacts| x |sites|).
type Measurement struct {
	Site    Site
	Year    int
	Month   int
	Celsius *float64
}

// Missing reports whether the value could not be extracted.
func (m *Measurement) Missing() bool {
	return m.Celsius == nil
}
