package domain

// LevelsStats is the diagnostic aggregate over all stored exit records.
type LevelsStats struct {
	Total      int            `json:"total"`
	Valid      int            `json:"valid"`
	Expired    int            `json:"expired"`
	BySide     map[Side]int   `json:"by_side"`
	ByStrategy map[string]int `json:"by_strategy"`
}

func NewLevelsStats() *LevelsStats {
	return &LevelsStats{
		BySide:     make(map[Side]int),
		ByStrategy: make(map[string]int),
	}
}
