package learning

import (
	"compress/lzw"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
	"github.com/go-git/go-billy/v5"

	"github.com/neurlang/imageclassifier/hashtron"
)

// FormatVersion is the version written to model files.
const FormatVersion = "1.0.0"

// formatConstraint accepts the model files Load can read.
const formatConstraint = "^1"

// ErrModelFormat is returned for model files Load cannot read.
var ErrModelFormat = errors.New("unsupported model format")

type modelJSON struct {
	Format  string              `json:"format"`
	Arch    string              `json:"arch"`
	Labels  []string            `json:"labels"`
	Classes []hashtron.Hashtron `json:"classes"`
}

// Save writes the model as lzw compressed json.
func (m *Model) Save(w io.Writer) error {
	lw := lzw.NewWriter(w, lzw.LSB, 8)
	err := json.NewEncoder(lw).Encode(modelJSON{
		Format:  FormatVersion,
		Arch:    m.arch,
		Labels:  m.labels,
		Classes: m.classes,
	})
	if err != nil {
		lw.Close()
		return fmt.Errorf("learning: save: %w", err)
	}
	return lw.Close()
}

// SaveFile writes the model to name on fs, creating parent directories.
func (m *Model) SaveFile(fs billy.Filesystem, name string) error {
	if dir := filepath.Dir(name); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("learning: save %q: %w", name, err)
		}
	}
	file, err := fs.Create(name)
	if err != nil {
		return fmt.Errorf("learning: save %q: %w", name, err)
	}
	err = m.Save(file)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	return err
}

// Load reads a model written by Save. opts supply the filesystem, image
// folder, workspace and bottleneck settings used for prediction. The
// architecture stored in the model overrides opts.Arch.
func Load(r io.Reader, opts Options) (*Model, error) {
	lr := lzw.NewReader(r, lzw.LSB, 8)
	defer lr.Close()
	var v modelJSON
	if err := json.NewDecoder(lr).Decode(&v); err != nil {
		return nil, fmt.Errorf("learning: load: %w", errors.Join(ErrModelFormat, err))
	}
	ver, err := semver.NewVersion(v.Format)
	if err != nil {
		return nil, fmt.Errorf("learning: load: format %q: %w", v.Format, errors.Join(ErrModelFormat, err))
	}
	c, err := semver.NewConstraint(formatConstraint)
	if err != nil {
		return nil, err
	}
	if !c.Check(ver) {
		return nil, fmt.Errorf("learning: load: format %s not %s: %w", ver, formatConstraint, ErrModelFormat)
	}
	if len(v.Labels) < 2 || len(v.Labels) != len(v.Classes) {
		return nil, fmt.Errorf("learning: load: %d labels, %d classes: %w", len(v.Labels), len(v.Classes), ErrModelFormat)
	}
	opts.Arch = v.Arch
	opts.defaults()
	f, err := newFeaturizer(&opts)
	if err != nil {
		return nil, err
	}
	return &Model{arch: v.Arch, labels: v.Labels, classes: v.Classes, feat: f}, nil
}

// LoadFile reads the model at name on opts.FS.
func LoadFile(name string, opts Options) (*Model, error) {
	if opts.FS == nil {
		return nil, fmt.Errorf("learning: load %q: no filesystem: %w", name, ErrTraining)
	}
	file, err := opts.FS.Open(name)
	if err != nil {
		return nil, fmt.Errorf("learning: load %q: %w", name, err)
	}
	defer file.Close()
	return Load(file, opts)
}
