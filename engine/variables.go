package engine

// Variables is the mutable name-to-value mapping scoped to one run. It is
// owned exclusively by that run and never shared, so no locking is needed.
//
// Assign, Retrieve and Update silently no-op when the target name is absent.
// Variable blocks are user-authored; an authoring mistake must not abort a
// conversation.
type Variables struct {
	values   map[string]any
	renderer *Renderer
}

func NewVariables(renderer *Renderer) *Variables {
	return &Variables{
		values:   make(map[string]any),
		renderer: renderer,
	}
}

// Define inserts or overwrites unconditionally.
func (v *Variables) Define(name string, value any) {
	v.values[name] = value
}

// Assign sets an existing variable. String values are rendered as templates
// against the current store first, so an assignment may reference the
// variable's own prior value or any other variable.
func (v *Variables) Assign(name string, value any) error {
	if _, ok := v.values[name]; !ok {
		return nil
	}
	rendered, err := v.renderValue(value)
	if err != nil {
		return err
	}
	v.values[name] = rendered
	return nil
}

// Retrieve copies the value at sourceName to targetName. No-op when
// sourceName is absent; sourceName keeps its value either way.
func (v *Variables) Retrieve(sourceName, targetName string) {
	value, ok := v.values[sourceName]
	if !ok {
		return
	}
	v.values[targetName] = value
}

// Update re-renders and assigns an existing variable. No-op when the name is
// absent or the value is empty.
func (v *Variables) Update(name string, value any) error {
	if value == nil {
		return nil
	}
	if s, ok := value.(string); ok && s == "" {
		return nil
	}
	return v.Assign(name, value)
}

// Get retrieves a single value.
func (v *Variables) Get(name string) (any, bool) {
	value, ok := v.values[name]
	return value, ok
}

// All returns the live mapping for expression evaluation. Callers must treat
// it as read-only.
func (v *Variables) All() map[string]any {
	return v.values
}

// Snapshot returns a shallow copy, safe to hand out past the end of the run.
func (v *Variables) Snapshot() map[string]any {
	out := make(map[string]any, len(v.values))
	for k, val := range v.values {
		out[k] = val
	}
	return out
}

func (v *Variables) renderValue(value any) (any, error) {
	s, ok := value.(string)
	if !ok {
		return value, nil
	}
	return v.renderer.Render(s, v.values)
}
