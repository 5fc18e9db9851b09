// Package options implements the project's configured build options: typed,
// validated values that back the introspection surface consumed by
// completion tooling.
package options

import (
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Type enumerates the supported option types.
type Type string

const (
	Boolean Type = "boolean"
	Combo   Type = "combo"
	Feature Type = "feature"
	String  Type = "string"
	Integer Type = "integer"
	Array   Type = "array"
)

var featureChoices = []string{"auto", "enabled", "disabled"}

// Option is one configurable build option.
type Option struct {
	Name        string
	Type        Type
	Description string
	// Value holds a bool for Boolean, an int for Integer, a []string for
	// Array and a string otherwise.
	Value   interface{}
	choices []string
	min     *int
	max     *int
}

// Choices returns the complete value set for enumerable options: the
// declared set for combo, true/false for boolean and auto/enabled/disabled
// for feature. Other types return nil.
func (o *Option) Choices() []string {
	switch o.Type {
	case Boolean:
		return []string{"true", "false"}
	case Feature:
		return featureChoices
	case Combo:
		return o.choices
	}
	return nil
}

// Set validates and assigns a raw string value according to the option type.
func (o *Option) Set(raw string) error {
	switch o.Type {
	case Boolean:
		val, err := strconv.ParseBool(raw)
		if err != nil {
			return eris.Errorf("option %s expects true or false, got %q", o.Name, raw)
		}
		o.Value = val
	case Combo, Feature:
		for _, choice := range o.Choices() {
			if raw == choice {
				o.Value = raw
				return nil
			}
		}
		return eris.Errorf("option %s expects one of [%s], got %q", o.Name, strings.Join(o.Choices(), ", "), raw)
	case Integer:
		val, err := strconv.Atoi(raw)
		if err != nil {
			return eris.Errorf("option %s expects an integer, got %q", o.Name, raw)
		}
		if o.min != nil && val < *o.min {
			return eris.Errorf("option %s must be >= %d", o.Name, *o.min)
		}
		if o.max != nil && val > *o.max {
			return eris.Errorf("option %s must be <= %d", o.Name, *o.max)
		}
		o.Value = val
	case Array:
		if raw == "" {
			o.Value = []string{}
		} else {
			o.Value = strings.Split(raw, ",")
		}
	case String:
		o.Value = raw
	default:
		return eris.Errorf("option %s has unknown type %q", o.Name, o.Type)
	}

	return nil
}

// Set is the ordered collection of a project's options.
type Set struct {
	options []*Option
	byName  map[string]*Option
}

// All returns the options in declaration order.
func (s *Set) All() []*Option { return s.options }

// Get returns the named option.
func (s *Set) Get(name string) (*Option, bool) {
	o, ok := s.byName[name]
	return o, ok
}

// Apply assigns configured values on top of the declared defaults.
func (s *Set) Apply(values map[string]string) error {
	for name, raw := range values {
		opt, ok := s.byName[name]
		if !ok {
			return eris.Errorf("unknown option %s", name)
		}
		if err := opt.Set(raw); err != nil {
			return err
		}
	}
	return nil
}

type optionDecl struct {
	Name        string   `yaml:"name"`
	Type        string   `yaml:"type"`
	Description string   `yaml:"description,omitempty"`
	Default     string   `yaml:"default,omitempty"`
	Choices     []string `yaml:"choices,omitempty"`
	Min         *int     `yaml:"min,omitempty"`
	Max         *int     `yaml:"max,omitempty"`
}

type optionsFile struct {
	Options []optionDecl `yaml:"options"`
}

// Parse reads an option declaration document.
func Parse(data []byte) (*Set, error) {
	var file optionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, eris.Wrap(err, "failed to parse options document")
	}

	set := &Set{byName: make(map[string]*Option)}
	for _, decl := range file.Options {
		if decl.Name == "" {
			return nil, eris.New("option without a name")
		}
		if _, ok := set.byName[decl.Name]; ok {
			return nil, eris.Errorf("option %s is declared twice", decl.Name)
		}

		opt := &Option{
			Name:        decl.Name,
			Type:        Type(decl.Type),
			Description: decl.Description,
			choices:     decl.Choices,
			min:         decl.Min,
			max:         decl.Max,
		}

		switch opt.Type {
		case Boolean, Combo, Feature, String, Integer, Array:
		default:
			return nil, eris.Errorf("option %s has unknown type %q", decl.Name, decl.Type)
		}

		if opt.Type == Combo && len(opt.choices) == 0 {
			return nil, eris.Errorf("combo option %s declares no choices", decl.Name)
		}

		defaultValue := decl.Default
		if defaultValue == "" {
			defaultValue = typeDefault(opt)
		}
		if err := opt.Set(defaultValue); err != nil {
			return nil, eris.Wrapf(err, "invalid default for option %s", decl.Name)
		}

		set.options = append(set.options, opt)
		set.byName[decl.Name] = opt
	}

	return set, nil
}

// LoadFile reads an options file from disk. A missing file yields an empty
// set since options are not mandatory.
func LoadFile(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Set{byName: make(map[string]*Option)}, nil
		}
		return nil, eris.Wrapf(err, "failed to read %s", path)
	}

	return Parse(data)
}

func typeDefault(opt *Option) string {
	switch opt.Type {
	case Boolean:
		return "false"
	case Feature:
		return "auto"
	case Combo:
		return opt.choices[0]
	case Integer:
		return "0"
	}
	return ""
}
