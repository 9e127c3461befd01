// Package catalog defines the messages exchanged with the commitlog server
// and their field layouts. The zero value of every message is its default
// and encodes to zero bytes.
package catalog

import (
	"bytes"
	"fmt"
	"maps"
	"slices"

	errspkg "github.com/drblury/commitlog/internal/runtime/errors"
	"github.com/drblury/commitlog/internal/runtime/wire"
)

// FileSet maps file paths to file contents.
type FileSet map[string][]byte

// Paths returns the file paths in ascending order.
func (f FileSet) Paths() []string {
	return slices.Sorted(maps.Keys(f))
}

// Clone returns a deep copy of f.
func (f FileSet) Clone() FileSet {
	if f == nil {
		return nil
	}
	out := make(FileSet, len(f))
	for k, v := range f {
		out[k] = bytes.Clone(v)
	}
	return out
}

// Equal reports structural equality. A nil set equals an empty one.
func (f FileSet) Equal(o FileSet) bool {
	return maps.EqualFunc(f, o, bytes.Equal)
}

// SubmitRequest asks the server to run tests of a package and snapshot the
// files after each one.
type SubmitRequest struct {
	Tests   []string
	Package string
	Sort    SortSpec
}

func (r SubmitRequest) Equal(o SubmitRequest) bool {
	return slices.Equal(r.Tests, o.Tests) && r.Package == o.Package && r.Sort == o.Sort
}

// SubmitResponse carries the opaque id of a submitted job.
type SubmitResponse struct {
	ID string
}

// JobStatus is the server's view of a job. Details is meaningful while the
// job runs, Error once it failed, Results once it succeeded.
type JobStatus struct {
	Complete bool
	Details  string
	Error    string
	Results  *JobResults
}

func (s JobStatus) Equal(o JobStatus) bool {
	if s.Complete != o.Complete || s.Details != o.Details || s.Error != o.Error {
		return false
	}
	if s.Results == nil || o.Results == nil {
		return s.Results == nil && o.Results == nil
	}
	return s.Results.Equal(*o.Results)
}

// JobResults pairs each test with the file snapshot taken after running all
// tests up to and including it.
type JobResults struct {
	Tests []string
	Files []FileSet
}

// Validate checks that there is exactly one snapshot per test.
func (r JobResults) Validate() error {
	if len(r.Tests) != len(r.Files) {
		return fmt.Errorf("%w: %d tests, %d snapshots", errspkg.ErrInvalidResults, len(r.Tests), len(r.Files))
	}
	return nil
}

func (r JobResults) Equal(o JobResults) bool {
	return slices.Equal(r.Tests, o.Tests) && slices.EqualFunc(r.Files, o.Files, FileSet.Equal)
}

// CheckoutRequest asks the server to write a file snapshot to disk. A nil
// Files is absent; an empty non-nil Files is sent as an empty set.
type CheckoutRequest struct {
	Files FileSet
}

func (r CheckoutRequest) Equal(o CheckoutRequest) bool {
	return (r.Files == nil) == (o.Files == nil) && r.Files.Equal(o.Files)
}

var fileSetSchema = wire.NewSchema("FileSet",
	wire.StringBytesMap(1, "files", func(m *FileSet) *map[string][]byte { return (*map[string][]byte)(m) }),
).WithInit(func(m *FileSet) {
	if *m == nil {
		*m = FileSet{}
	}
})

var submitRequestSchema = wire.NewSchema("SubmitRequest",
	wire.RepeatedString(1, "tests", func(m *SubmitRequest) *[]string { return &m.Tests }),
	wire.String(2, "pkg", func(m *SubmitRequest) *string { return &m.Package }),
	wire.EnumField(3, "sort", func(m *SubmitRequest) *SortSpec { return &m.Sort }, SortSpecFromNumber, ParseSortSpec),
)

var submitResponseSchema = wire.NewSchema("SubmitResponse",
	wire.String(1, "id", func(m *SubmitResponse) *string { return &m.ID }),
)

var jobResultsSchema = wire.NewSchema("JobResults",
	wire.RepeatedString(1, "tests", func(m *JobResults) *[]string { return &m.Tests }),
	wire.RepeatedMessage(2, "files", func(m *JobResults) *[]FileSet { return &m.Files }, fileSetSchema),
)

var jobStatusSchema = wire.NewSchema("JobStatus",
	wire.Bool(1, "complete", func(m *JobStatus) *bool { return &m.Complete }),
	wire.String(2, "details", func(m *JobStatus) *string { return &m.Details }),
	wire.String(3, "error", func(m *JobStatus) *string { return &m.Error }),
	wire.Optional(4, "results", func(m *JobStatus) **JobResults { return &m.Results }, jobResultsSchema),
)

var checkoutRequestSchema = wire.NewSchema("CheckoutRequest",
	wire.Embedded(1, "files", func(m *CheckoutRequest) *FileSet { return &m.Files },
		func(f *FileSet) bool { return *f != nil }, fileSetSchema),
)
