package core

// ConditionResult is one node of an evaluation trace.
type ConditionResult struct {
	Matched bool `json:"matched"`

	// For leaves
	Expression string `json:"expression,omitempty"` // e.g. "bitstream_count(min=1, bundle=ORIGINAL)"
	Reason     string `json:"reason,omitempty"`

	// For branching
	Label    string            `json:"label,omitempty"` // e.g. "AND"
	Children []ConditionResult `json:"children,omitempty"`
}

// FilterTrace captures the detailed trace of a filter evaluation for one object.
type FilterTrace struct {
	// CorrelationID is the unique identifier for the evaluation request.
	CorrelationID string `yaml:"correlation_id" json:"correlation_id"`

	Filter      string `yaml:"filter" json:"filter"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Handle      string `yaml:"handle" json:"handle"`

	// Result is the final decision of the filter.
	Result bool `yaml:"result" json:"result"`

	// Error is set when the evaluation failed; Result is false then.
	Error string `yaml:"error,omitempty" json:"error,omitempty"`

	// Root is the trace of the filter's root statement.
	Root ConditionResult `yaml:"root" json:"root"`
}
