package config

// Source names the layer a setting was resolved from.
type Source string

// Layers, lowest precedence first.
const (
	SourceDefault Source = "default"
	// SourceGlobal is ~/.config/blueprint/config.yaml.
	SourceGlobal Source = "global"
	// SourceLocal is .blueprint.yaml at the git root.
	SourceLocal Source = "local"
	SourceEnv   Source = "env"
	// SourceFlag covers --set and flags bound to keys.
	SourceFlag Source = "flag"
)

var precedence = map[Source]int{
	SourceDefault: 0,
	SourceGlobal:  1,
	SourceLocal:   2,
	SourceEnv:     3,
	SourceFlag:    4,
}

// Rank orders sources by precedence. Unknown sources rank below defaults.
func (s Source) Rank() int {
	if r, ok := precedence[s]; ok {
		return r
	}
	return -1
}

// Overrides reports whether a value from s replaces one from other.
func (s Source) Overrides(other Source) bool {
	return s.Rank() >= other.Rank()
}

// Setting is one value a layer supplied for a key.
type Setting struct {
	Value  string
	Source Source
}
