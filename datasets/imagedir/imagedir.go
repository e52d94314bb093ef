// Package imagedir implements the directory scanner which turns a folder of
// .jpg and .png files into a labeled dataset.
//
// Labels come either from the name of the folder holding each image, or from
// the leading letters of the file name (cat1.jpg is a "cat").
package imagedir

import (
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/neurlang/imageclassifier/datasets"
)

// ErrEmptyLabel is returned for an image whose file name does not start with a letter.
var ErrEmptyLabel = errors.New("empty label")

// errStop ends the walk early when the consumer stops iterating.
var errStop = errors.New("stop")

// DefaultExtensions are the recognized image extensions.
var DefaultExtensions = []string{".jpg", ".png"}

// Options configure the Scanner.
type Options struct {
	// FileNameLabels labels each image with its file name cut at the first
	// non-letter. The zero value labels it with its parent directory name.
	FileNameLabels bool

	// CaseInsensitive accepts .JPG and .PNG too. Off by default.
	CaseInsensitive bool

	// Extensions overrides DefaultExtensions.
	Extensions []string
}

// Scanner walks a filesystem and yields labeled samples.
type Scanner struct {
	fs   billy.Filesystem
	opts Options
	exts map[string]struct{}
}

// New creates a Scanner over fs. A nil opts is the zero Options: folder
// labels and the case-sensitive default extensions.
func New(fs billy.Filesystem, opts *Options) *Scanner {
	var o Options
	if opts != nil {
		o = *opts
	}
	if len(o.Extensions) == 0 {
		o.Extensions = DefaultExtensions
	}
	exts := make(map[string]struct{}, len(o.Extensions))
	for _, e := range o.Extensions {
		if o.CaseInsensitive {
			e = strings.ToLower(e)
		}
		exts[e] = struct{}{}
	}
	return &Scanner{fs: fs, opts: o, exts: exts}
}

// IsImage reports whether name carries a recognized extension.
func (s *Scanner) IsImage(name string) bool {
	ext := filepath.Ext(name)
	if s.opts.CaseInsensitive {
		ext = strings.ToLower(ext)
	}
	_, ok := s.exts[ext]
	return ok
}

// DeriveLabel returns the label of the image at path. With useFolderName it is
// the immediate parent directory, otherwise the file name up to the first
// non-letter, which is empty when the name starts with a digit.
func DeriveLabel(path string, useFolderName bool) string {
	if useFolderName {
		return filepath.Base(filepath.Dir(path))
	}
	name := filepath.Base(path)
	for i, r := range name {
		if !unicode.IsLetter(r) {
			return name[:i]
		}
	}
	return name
}

// Samples lazily walks root in filesystem order. Each recognized image is
// yielded once. Filesystem errors end the sequence; ErrEmptyLabel does not.
func (s *Scanner) Samples(root string) iter.Seq2[datasets.LabeledSample, error] {
	return func(yield func(datasets.LabeledSample, error) bool) {
		err := util.Walk(s.fs, root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() || !s.IsImage(path) {
				return nil
			}
			label := DeriveLabel(path, !s.opts.FileNameLabels)
			if label == "" {
				if !yield(datasets.LabeledSample{Path: path}, fmt.Errorf("imagedir: %q: %w", path, ErrEmptyLabel)) {
					return errStop
				}
				return nil
			}
			if !yield(datasets.LabeledSample{Path: path, Label: label}, nil) {
				return errStop
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStop) {
			yield(datasets.LabeledSample{}, fmt.Errorf("imagedir: walk %q: %w", root, err))
		}
	}
}

// Scan collects Samples into a Dataset, stopping at the first error.
func (s *Scanner) Scan(root string) (datasets.Dataset, error) {
	var out datasets.Dataset
	for sample, err := range s.Samples(root) {
		if err != nil {
			return nil, err
		}
		out = append(out, sample)
	}
	return out, nil
}
