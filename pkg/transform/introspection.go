package transform

import "github.com/aretw0/introspection"

// TransformerState exposes internal state for observability.
type TransformerState struct {
	Hooks    []string `json:"hooks"`
	Installs int64    `json:"installs"`
	Metrics  bool     `json:"metrics"`
}

// State implements introspection.Introspectable.
func (t *Transformer) State() any {
	return TransformerState{
		Hooks:    t.cfg.hooks(),
		Installs: t.installs.Load(),
		Metrics:  t.metrics != nil,
	}
}

// ComponentType implements introspection.Component.
func (t *Transformer) ComponentType() string {
	return "transformer"
}

var _ introspection.Introspectable = (*Transformer)(nil)
var _ introspection.Component = (*Transformer)(nil)
