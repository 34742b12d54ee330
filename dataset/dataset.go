// Package dataset builds training matrices from a directory of labeled
// character images. The file name, minus its extension, is the label.
package dataset

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/syhv-git/gonn-plates/imaging"
	"github.com/syhv-git/gonn-plates/label"
	"gonum.org/v1/gonum/mat"
)

// DefaultRoot is the directory training subdirectories live under.
const DefaultRoot = "assets"

var (
	ErrInconsistentNames = errors.New("image names have different lengths")
	ErrShapeMismatch     = errors.New("sample vectors have different lengths")
	ErrEmptyDataset      = errors.New("dataset has no usable samples")
)

// Check selects how sample names are compared before decoding.
type Check int

const (
	// FilenameLength compares whole file names, extension and suffix
	// included. "AB_1.png" and "A_1.png" are rejected even though both
	// labels would encode fine.
	FilenameLength Check = iota
	// LabelLength compares the encoded part of the names only.
	LabelLength
)

func (c Check) String() string {
	switch c {
	case FilenameLength:
		return "filename"
	case LabelLength:
		return "label"
	}
	return "unknown"
}

// ParseCheck is the inverse of Check.String.
func ParseCheck(s string) (Check, error) {
	switch s {
	case "filename":
		return FilenameLength, nil
	case "label":
		return LabelLength, nil
	}
	return 0, errors.Errorf("unknown name check %q", s)
}

type Options struct {
	Dir     string
	Decoder imaging.Decoder
	Check   Check
	Logger  *log.Logger
}

// Result is the outcome of reading a single file.
type Result struct {
	Name   string
	Input  []float64
	Target []float64
	Err    error
}

// OK reports whether the file produced a usable sample.
func (r Result) OK() bool { return r.Err == nil }

type Dataset struct {
	Names   []string
	Inputs  [][]float64
	Targets [][]float64
	Skipped []Result
}

// Len returns the number of usable samples.
func (ds *Dataset) Len() int { return len(ds.Inputs) }

// Path joins the training root and a subdirectory, falling back to
// DefaultRoot when root is empty.
func Path(root, sub string) string {
	if root == "" {
		root = DefaultRoot
	}
	return filepath.Join(root, sub)
}

// Build lists the regular files directly under opts.Dir and turns each one
// into a sample. Names are checked for equal length first; the first
// mismatch aborts the build. Files the decoder rejects are logged and left
// out.
func Build(opts Options) (*Dataset, error) {
	if opts.Decoder == nil {
		opts.Decoder = imaging.FileDecoder{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	entries, err := os.ReadDir(opts.Dir)
	if err != nil {
		return nil, errors.Wrap(err, "list training images")
	}

	ds := &Dataset{}
	size := -1
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		name := e.Name()
		n := nameLen(name, opts.Check)
		if size < 0 {
			size = n
		} else if n != size {
			return nil, errors.Wrapf(ErrInconsistentNames, "%s has %s length %d, expected %d", name, opts.Check, n, size)
		}

		r := Read(opts.Decoder, opts.Dir, name)
		if !r.OK() {
			if errors.Cause(r.Err) == label.ErrCodeOverflow || errors.Cause(r.Err) == label.ErrEmptyLabel {
				return nil, r.Err
			}
			logger.Printf("skipping %s: %v", name, r.Err)
			ds.Skipped = append(ds.Skipped, r)
			continue
		}
		ds.Names = append(ds.Names, r.Name)
		ds.Inputs = append(ds.Inputs, r.Input)
		ds.Targets = append(ds.Targets, r.Target)
	}
	if len(ds.Skipped) > 0 {
		logger.Printf("skipped %d of %d images in %s", len(ds.Skipped), len(ds.Skipped)+ds.Len(), opts.Dir)
	}
	return ds, nil
}

// Read decodes and labels a single file.
func Read(dec imaging.Decoder, dir, name string) Result {
	r := Result{Name: name}
	r.Target, r.Err = label.EncodeFile(name)
	if r.Err != nil {
		return r
	}
	r.Input, r.Err = dec.Decode(filepath.Join(dir, name))
	if r.Err == nil && len(r.Input) == 0 {
		r.Err = errors.Errorf("%s has no pixels", name)
	}
	return r
}

func nameLen(name string, c Check) int {
	if c == LabelLength {
		return utf8.RuneCountInString(label.Stem(name))
	}
	return utf8.RuneCountInString(name)
}

// Matrices copies the samples into an N×D input matrix and an N×K target
// matrix. Every input and every target must have the same length.
func (ds *Dataset) Matrices() (inputs, targets *mat.Dense, err error) {
	if ds.Len() == 0 {
		return nil, nil, ErrEmptyDataset
	}
	if len(ds.Targets) != ds.Len() {
		return nil, nil, errors.Wrapf(ErrShapeMismatch, "%d inputs but %d targets", ds.Len(), len(ds.Targets))
	}
	x, err := dense(ds.Inputs, ds.Names)
	if err != nil {
		return nil, nil, errors.Wrap(err, "inputs")
	}
	y, err := dense(ds.Targets, ds.Names)
	if err != nil {
		return nil, nil, errors.Wrap(err, "targets")
	}
	return x, y, nil
}

func dense(rows [][]float64, names []string) (*mat.Dense, error) {
	cols := len(rows[0])
	if cols == 0 {
		return nil, errors.Wrap(ErrShapeMismatch, "samples are empty")
	}
	data := make([]float64, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return nil, errors.Wrapf(ErrShapeMismatch, "%s has %d values, expected %d", sampleName(names, i), len(r), cols)
		}
		data = append(data, r...)
	}
	return mat.NewDense(len(rows), cols, data), nil
}

func sampleName(names []string, i int) string {
	if i < len(names) {
		return names[i]
	}
	return fmt.Sprintf("sample %d", i)
}
