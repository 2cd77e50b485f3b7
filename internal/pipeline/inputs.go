package pipeline

// Input palette, cycled in registration order. Terminal 256-color codes,
// matching the accent palette used by the TUI.
var inputPalette = []string{"205", "86", "214", "78", "135", "203", "117", "222"}

// InputRegistry assigns each top-level input parameter a stable display slot
// and color by first-seen order. Colors never change once assigned, so
// connectors stay visually stable across layout rebuilds.
type InputRegistry struct {
	names  []string
	colors map[string]string
}

// NewInputRegistry creates an empty registry.
func NewInputRegistry() *InputRegistry {
	return &InputRegistry{colors: make(map[string]string)}
}

// Register records an input name if it is new and returns its color.
func (r *InputRegistry) Register(name string) string {
	if c, ok := r.colors[name]; ok {
		return c
	}
	c := inputPalette[len(r.names)%len(inputPalette)]
	r.names = append(r.names, name)
	r.colors[name] = c
	return c
}

// Names returns all registered inputs in registration order.
func (r *InputRegistry) Names() []string {
	return r.names
}

// Color returns the color assigned to an input, or "" if unregistered.
func (r *InputRegistry) Color(name string) string {
	return r.colors[name]
}

// Slot returns the registration index of an input, or -1 if unregistered.
// Layout uses the slot as a stable vertical position for the input connector.
func (r *InputRegistry) Slot(name string) int {
	for i, n := range r.names {
		if n == name {
			return i
		}
	}
	return -1
}

// Len returns the number of registered inputs.
func (r *InputRegistry) Len() int {
	return len(r.names)
}
