package scheduler

import (
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/mason-build/mason/pkg/graph"
)

// StampFile holds the persisted staleness records inside the build
// directory.
const StampFile = "mason-stamps.gob"

// FileStamp is the recorded fingerprint of a single file. Sum is a sha256
// content hash; Size and MTimeNano exist only as a fast path so unchanged
// files don't get re-read on every plan.
type FileStamp struct {
	Size      int64
	MTimeNano int64
	Sum       string
}

// Record is the per-node staleness state: the command that ran last and the
// fingerprints of every input and output at that time. A change to any of
// them forces a rebuild.
type Record struct {
	CommandSum string
	Inputs     map[string]FileStamp
	Outputs    map[string]FileStamp
}

// StampStore loads, queries and persists staleness records. Only the
// scheduler mutates it, and only for nodes it has just finished building;
// each record is committed exactly once per run.
type StampStore struct {
	path    string
	records map[string]Record
}

func init() {
	gob.Register(map[string]Record{})
}

// LoadStamps reads the stamp store of a build directory. A missing file
// yields an empty store, which simply marks everything stale.
func LoadStamps(buildDir string) (*StampStore, error) {
	store := &StampStore{
		path:    filepath.Join(buildDir, StampFile),
		records: make(map[string]Record),
	}

	handle, err := os.Open(store.path)
	if err != nil {
		if os.IsNotExist(err) {
			return store, nil
		}
		return nil, eris.Wrapf(err, "failed to open %s", store.path)
	}
	defer handle.Close()

	err = gob.NewDecoder(handle).Decode(&store.records)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to decode %s", store.path)
	}

	return store, nil
}

// Save persists the store back into the build directory.
func (s *StampStore) Save() error {
	handle, err := os.Create(s.path)
	if err != nil {
		return eris.Wrapf(err, "failed to create %s", s.path)
	}
	defer handle.Close()

	err = gob.NewEncoder(handle).Encode(s.records)
	if err != nil {
		return eris.Wrapf(err, "failed to encode %s", s.path)
	}
	return nil
}

// Get returns the record for a node.
func (s *StampStore) Get(node string) (Record, bool) {
	rec, ok := s.records[node]
	return rec, ok
}

// Commit replaces the record for a node after a successful build.
func (s *StampStore) Commit(node string, rec Record) {
	s.records[node] = rec
}

// Forget drops a node's record, forcing a rebuild on the next plan.
func (s *StampStore) Forget(node string) {
	delete(s.records, node)
}

func commandSum(node *graph.Node) string {
	hasher := sha256.New()
	io.WriteString(hasher, node.Command)

	keys := make([]string, 0, len(node.Env))
	for k := range node.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		io.WriteString(hasher, "\x00"+k+"="+node.Env[k])
	}

	return hex.EncodeToString(hasher.Sum(nil))
}

func hashFile(path string) (string, error) {
	handle, err := os.Open(path)
	if err != nil {
		return "", eris.Wrapf(err, "failed to open %s", path)
	}
	defer handle.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, handle); err != nil {
		return "", eris.Wrapf(err, "failed to hash %s", path)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// stampPath fingerprints a file, reusing the recorded hash when size and
// mtime still match.
func stampPath(path string, prev FileStamp) (FileStamp, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileStamp{}, eris.Wrapf(err, "failed to check %s", path)
	}

	stamp := FileStamp{Size: info.Size(), MTimeNano: info.ModTime().UnixNano()}
	if prev.Sum != "" && prev.Size == stamp.Size && prev.MTimeNano == stamp.MTimeNano {
		stamp.Sum = prev.Sum
		return stamp, nil
	}

	stamp.Sum, err = hashFile(path)
	return stamp, err
}
