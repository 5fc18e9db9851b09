package graph

import (
	"encoding/gob"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// StateFile is the name of the serialized declaration set inside a
// configured build directory. The configuring front end writes it, this
// module only reads it.
const StateFile = "mason-state.gob"

// State is everything the front end hands over per build directory.
type State struct {
	SourceRoot   string
	Declarations []Declaration
	Tests        []TestCase
	Platform     Platform
	// OptionValues are the configured values of the project's build
	// options, keyed by option name.
	OptionValues map[string]string
}

func init() {
	gob.Register(State{})
}

// WriteState serializes the state into the given build directory.
func WriteState(buildDir string, state *State) error {
	path := filepath.Join(buildDir, StateFile)
	handle, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "failed to create %s", path)
	}
	defer handle.Close()

	err = gob.NewEncoder(handle).Encode(state)
	if err != nil {
		return eris.Wrapf(err, "failed to encode %s", path)
	}
	return nil
}

// ReadState loads the state from a configured build directory.
func ReadState(buildDir string) (*State, error) {
	path := filepath.Join(buildDir, StateFile)
	handle, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to open %s (is %s a configured build directory?)", path, buildDir)
	}
	defer handle.Close()

	var state State
	err = gob.NewDecoder(handle).Decode(&state)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to decode %s", path)
	}

	return &state, nil
}

// BuildGraph reconstructs and validates the graph described by the state.
func (s *State) BuildGraph() (*Graph, error) {
	builder := NewBuilder(s.SourceRoot, s.Platform)
	for _, decl := range s.Declarations {
		if err := builder.Add(decl); err != nil {
			return nil, err
		}
	}
	for _, tc := range s.Tests {
		builder.AddTest(tc)
	}

	return builder.Finalize()
}
