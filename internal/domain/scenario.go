// Package domain contains core domain types for the roleplay training server.
package domain

// Scenario is a training situation containing one or more personas to
// converse with. Immutable once loaded for a session.
type Scenario struct {
	ID              string    `json:"id" yaml:"id"`
	Title           string    `json:"title" yaml:"title"`
	Description     string    `json:"description" yaml:"description"`
	Personas        []Persona `json:"personas" yaml:"personas"`
	Objectives      []string  `json:"objectives" yaml:"objectives"`
	SuccessCriteria string    `json:"success_criteria" yaml:"success_criteria"`
}

// PersonaByID returns the persona with the given id, or nil.
func (s *Scenario) PersonaByID(id string) *Persona {
	for i := range s.Personas {
		if s.Personas[i].ID == id {
			return &s.Personas[i]
		}
	}
	return nil
}

// MultiPersona reports whether the scenario engages two or more personas,
// which is what makes a strategy reflection applicable.
func (s *Scenario) MultiPersona() bool {
	return len(s.Personas) >= 2
}

// Persona is a simulated conversational counterpart with fixed behavioral
// framing. The behavioral attributes are consumed only by the conversation
// engine; the orchestrator does not interpret them.
type Persona struct {
	ID         string `json:"id" yaml:"id"`
	Name       string `json:"name" yaml:"name"`
	Role       string `json:"role" yaml:"role"`
	Department string `json:"department" yaml:"department"`
	Stance     string `json:"stance" yaml:"stance"`
	Goal       string `json:"goal" yaml:"goal"`
	Tradeoff   string `json:"tradeoff" yaml:"tradeoff"`
}

// PersonaSnapshot is an immutable copy of a Persona captured at
// conversation-creation time. A completed conversation's displayed persona
// never drifts even if the canonical record is later edited.
type PersonaSnapshot struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	Department string `json:"department"`
	Stance     string `json:"stance"`
	Goal       string `json:"goal"`
	Tradeoff   string `json:"tradeoff"`
}

// Snapshot captures the persona's attributes at this moment.
func (p *Persona) Snapshot() PersonaSnapshot {
	return PersonaSnapshot{
		ID:         p.ID,
		Name:       p.Name,
		Role:       p.Role,
		Department: p.Department,
		Stance:     p.Stance,
		Goal:       p.Goal,
		Tradeoff:   p.Tradeoff,
	}
}
