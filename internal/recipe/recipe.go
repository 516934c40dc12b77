package recipe

// OutputPathMarker is the argument value replaced by the designated output
// path when a step is executed.
const OutputPathMarker = "CSET_OUTPUT_PATH"

// Path marks a recipe source as a file on disk rather than recipe text.
type Path string

// Recipe is a parsed recipe document. It is read-only once parsed.
type Recipe struct {
	Title       string
	Description string
	Steps       []*Step
}

// Step is one operator invocation. Args keep the order of the document.
type Step struct {
	Operator string
	Args     []Arg
}

// Arg is a single keyword argument of a step. Value holds a literal decoded
// from the document, or a *Step when the argument is itself a step.
type Arg struct {
	Name  string
	Value any
}

// Arg returns the value of the named argument.
func (s *Step) Arg(name string) (any, bool) {
	for _, a := range s.Args {
		if a.Name == name {
			return a.Value, true
		}
	}
	return nil, false
}

// IsOutputPathMarker reports whether v is the output path marker.
func IsOutputPathMarker(v any) bool {
	s, ok := v.(string)
	return ok && s == OutputPathMarker
}

// Walk visits every step of the recipe depth-first, nested steps before the
// step that holds them. depth is 0 for top-level steps.
func (r *Recipe) Walk(fn func(s *Step, depth int)) {
	for _, s := range r.Steps {
		walkStep(s, 0, fn)
	}
}

func walkStep(s *Step, depth int, fn func(*Step, int)) {
	for _, a := range s.Args {
		if nested, ok := a.Value.(*Step); ok {
			walkStep(nested, depth+1, fn)
		}
	}
	fn(s, depth)
}
