package excel

// ReaderConfig holds configuration for parsing uploaded measurement files
type ReaderConfig struct {
	// TargetRows is the approximate row count kept after load-time
	// sampling. Zero or less disables sampling.
	TargetRows int `json:"target_rows"`
	// Sheet names the XLSX worksheet to read; empty means the first sheet.
	Sheet string `json:"sheet,omitempty"`
	// Comma is the CSV field delimiter
	Comma rune `json:"comma"`
}

// DefaultReaderConfig returns the dashboard defaults
func DefaultReaderConfig() ReaderConfig {
	return ReaderConfig{
		TargetRows: 10000,
		Comma:      ',',
	}
}
