package models

import "strings"

// AdvisorProfile describes one persona the model is asked to emulate
type AdvisorProfile struct {
	ID          string `yaml:"id" json:"id"`
	DisplayName string `yaml:"display_name" json:"display_name"`
	Persona     string `yaml:"persona" json:"persona"`
	Task        string `yaml:"task" json:"task"`
}

// Tag returns the bracketed section header the model must emit for this advisor, e.g. [PLITT]
func (p AdvisorProfile) Tag() string {
	return "[" + strings.ToUpper(p.ID) + "]"
}

// Label returns the uppercase id used as the author name in summit transcripts
func (p AdvisorProfile) Label() string {
	return strings.ToUpper(p.ID)
}

// Session carries the per-request identity and model settings into every engine call
type Session struct {
	UserID          string
	APIKey          string
	PrimaryModel    string          // Advisor feedback and summit turns
	UtilityModel    string          // Relevance, goal progress and attribute extraction
	EnabledAdvisors map[string]bool // Missing IDs count as disabled
}

// AdvisorEnabled reports whether the user turned the advisor on
func (s *Session) AdvisorEnabled(id string) bool {
	return s.EnabledAdvisors[id]
}
