package entity

// ActionRecord is one replayed {action, output} pair.
type ActionRecord struct {
	Ability Ability `json:"ability"`
	Output  string  `json:"output"`
}

// Continuation is the ordered history carried from step to step and replayed
// into every prompt. It is append-only.
type Continuation struct {
	Actions []ActionRecord `json:"previous_actions"`
	Outputs []string       `json:"previous_output"`
}

// Append returns a copy of c extended with one cycle. c itself is not modified.
func (c *Continuation) Append(record ActionRecord, output string) *Continuation {
	next := c.Clone()
	next.Actions = append(next.Actions, record)
	next.Outputs = append(next.Outputs, output)
	return next
}

func (c *Continuation) Clone() *Continuation {
	if c == nil {
		return &Continuation{Actions: []ActionRecord{}, Outputs: []string{}}
	}
	actions := make([]ActionRecord, len(c.Actions))
	for i, a := range c.Actions {
		actions[i] = ActionRecord{Ability: a.Ability.Clone(), Output: a.Output}
	}
	outputs := make([]string, len(c.Outputs))
	copy(outputs, c.Outputs)
	return &Continuation{Actions: actions, Outputs: outputs}
}

func (c *Continuation) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Actions)
}
