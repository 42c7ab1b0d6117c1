package domain

import "time"

// Suite is a named ordered collection of steps sharing an optional
// default environment.
type Suite struct {
	ID                   string     `json:"id"`
	Name                 string     `json:"name"`
	DefaultEnvironmentID string     `json:"defaultEnvironmentId,omitempty"`
	Steps                []Step     `json:"steps"`
	DeletedAt            *time.Time `json:"deletedAt,omitempty"`
}

// StepByID finds a step by ID within the suite.
func (s *Suite) StepByID(id string) (*Step, bool) {
	for i := range s.Steps {
		if s.Steps[i].ID == id {
			return &s.Steps[i], true
		}
	}
	return nil, false
}

// StepByName finds a step by name within the suite.
func (s *Suite) StepByName(name string) (*Step, bool) {
	for i := range s.Steps {
		if s.Steps[i].Name == name {
			return &s.Steps[i], true
		}
	}
	return nil, false
}
