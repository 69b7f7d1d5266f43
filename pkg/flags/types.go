package flags

import (
	"context"
	"sort"
)

// Variant names toggled by Enable and Disable.
const (
	VariantOn  = "on"
	VariantOff = "off"
)

// Flag states.
const (
	StateEnabled  = "ENABLED"
	StateDisabled = "DISABLED"
)

// Evaluation reasons.
const (
	ReasonStatic         = "STATIC"
	ReasonTargetingMatch = "TARGETING_MATCH"
)

// Controller enables, disables and evaluates named flags.
// Implementations must be safe for concurrent use.
type Controller interface {
	// Enable points the flag at its "on" variant.
	Enable(ctx context.Context, name string) error

	// Disable points the flag at its "off" variant.
	Disable(ctx context.Context, name string) error

	// GetValue returns the boolean value of the flag's default variant.
	GetValue(ctx context.Context, name string) (bool, error)

	// Evaluate resolves the flag for an evaluation context.
	Evaluate(ctx context.Context, name string, evalCtx EvaluationContext) (*Evaluation, error)

	// List returns every defined flag, sorted by name.
	List(ctx context.Context) ([]*Flag, error)
}

// EvaluationContext carries targeting attributes such as region or user id.
type EvaluationContext map[string]string

// TargetingRule selects Variant when the context attribute Key equals one of
// Values.
type TargetingRule struct {
	Key     string   `json:"key"`
	Values  []string `json:"values"`
	Variant string   `json:"variant"`
}

// Flag is a single flag definition.
type Flag struct {
	Name           string          `json:"-"`
	State          string          `json:"state"`
	Variants       map[string]any  `json:"variants"`
	DefaultVariant string          `json:"defaultVariant"`
	Targeting      []TargetingRule `json:"targeting,omitempty"`
	Metadata       map[string]any  `json:"metadata,omitempty"`
}

// Clone returns a deep copy of the flag (variant values are copied shallowly).
func (f *Flag) Clone() *Flag {
	c := *f
	c.Variants = make(map[string]any, len(f.Variants))
	for k, v := range f.Variants {
		c.Variants[k] = v
	}
	if f.Targeting != nil {
		c.Targeting = make([]TargetingRule, len(f.Targeting))
		for i, rule := range f.Targeting {
			rule.Values = append([]string(nil), rule.Values...)
			c.Targeting[i] = rule
		}
	}
	if f.Metadata != nil {
		c.Metadata = make(map[string]any, len(f.Metadata))
		for k, v := range f.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// NewBooleanFlag returns an enabled on/off flag defaulting to off.
func NewBooleanFlag(name string) *Flag {
	return &Flag{
		Name:           name,
		State:          StateEnabled,
		Variants:       map[string]any{VariantOn: true, VariantOff: false},
		DefaultVariant: VariantOff,
	}
}

// Evaluation is the result of resolving a flag.
type Evaluation struct {
	Flag    string `json:"flag"`
	Variant string `json:"variant"`
	Value   any    `json:"value"`
	Reason  string `json:"reason"`
}

// Document is the on-disk flag definition file.
type Document struct {
	Flags map[string]*Flag `json:"flags"`
}

// sortedFlags returns clones of the document's flags ordered by name.
func sortedFlags(flags map[string]*Flag) []*Flag {
	out := make([]*Flag, 0, len(flags))
	for name, f := range flags {
		c := f.Clone()
		c.Name = name
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
