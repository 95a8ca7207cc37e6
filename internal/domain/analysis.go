package domain

// AreaTraffic is the share of visitors observed in one floor area.
type AreaTraffic struct {
	Area       string  `json:"area"`
	Percentage float64 `json:"percentage"`
}

// PeakInterval is a time bucket and the visitor count seen in it.
type PeakInterval struct {
	Start    string `json:"start"`
	End      string `json:"end"`
	Visitors int    `json:"visitors"`
}

// Analysis is the derived payload for a sub-range of a completed job.
type Analysis struct {
	TotalVisitors       int            `json:"total_visitors"`
	UniqueVisitors      int            `json:"unique_visitors"`
	TrafficDistribution []AreaTraffic  `json:"traffic_distribution"`
	PeakIntervals       []PeakInterval `json:"peak_intervals"`
	Recommendations     []string       `json:"recommendations"`
}

// ExportKind is an export artifact format.
type ExportKind string

const (
	ExportCSV   ExportKind = "csv"
	ExportPDF   ExportKind = "pdf"
	ExportImage ExportKind = "image"
)

// Valid reports whether k is a known export format.
func (k ExportKind) Valid() bool {
	return k == ExportCSV || k == ExportPDF || k == ExportImage
}

// Extension returns the file extension used when archiving the artifact.
func (k ExportKind) Extension() string {
	if k == ExportImage {
		return "png"
	}
	return string(k)
}

// ContentType returns the MIME type of the artifact.
func (k ExportKind) ContentType() string {
	switch k {
	case ExportCSV:
		return "text/csv"
	case ExportPDF:
		return "application/pdf"
	default:
		return "image/png"
	}
}
