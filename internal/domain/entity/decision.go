package entity

import "maps"

// Decision is the parsed model answer for a single step.
type Decision struct {
	Thoughts *Thoughts `json:"thoughts,omitempty"`
	Ability  *Ability  `json:"ability,omitempty"`
}

type Thoughts struct {
	Text      string `json:"text,omitempty"`
	Reasoning string `json:"reasoning,omitempty"`
	Plan      any    `json:"plan,omitempty"`
	Criticism string `json:"criticism,omitempty"`
	Speak     string `json:"speak,omitempty"`
}

type Ability struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

func (a Ability) Clone() Ability {
	return Ability{Name: a.Name, Args: maps.Clone(a.Args)}
}

// ActionName returns the chosen ability name, or "" when the model omitted it.
func (d *Decision) ActionName() string {
	if d == nil || d.Ability == nil {
		return ""
	}
	return d.Ability.Name
}

func (d *Decision) ActionArgs() map[string]any {
	if d == nil || d.Ability == nil || d.Ability.Args == nil {
		return map[string]any{}
	}
	return d.Ability.Args
}

// Speak returns the user-facing line of the decision.
func (d *Decision) Speak() string {
	if d == nil || d.Thoughts == nil {
		return ""
	}
	return d.Thoughts.Speak
}
