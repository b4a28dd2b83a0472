package model

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalProcedure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"getWidgets", "stp_getWidgets"},
		{"stp_getWidgets", "stp_getWidgets"},
		{"oee.stp_getGroupOEE_AQP", "stp_getGroupOEE_AQP"},
		{"oee.getGroupOEE_AQP", "stp_getGroupOEE_AQP"},
		{"a.b.c", "stp_c"},
		{"stp.", "stp_"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got := CanonicalProcedure(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, CanonicalProcedure(got), "not idempotent")
		})
	}
}

func TestCanonicalProcedureSameEntity(t *testing.T) {
	t.Parallel()
	assert.Equal(t, CanonicalProcedure("stp_getGroupOEE_AQP"), CanonicalProcedure("oee.stp_getGroupOEE_AQP"))
}

func TestIsTemporaryTable(t *testing.T) {
	t.Parallel()
	assert.True(t, IsTemporaryTable("#Temp1"))
	assert.False(t, IsTemporaryTable("Temp1"))
}

func TestClassify(t *testing.T) {
	t.Parallel()

	notFound := Classify(fmt.Errorf("open x.py: %w", fs.ErrNotExist))
	assert.ErrorIs(t, notFound, ErrInputNotFound)
	assert.ErrorIs(t, notFound, fs.ErrNotExist)

	io := Classify(errors.New("permission denied"))
	assert.ErrorIs(t, io, ErrIOFailure)

	malformed := fmt.Errorf("entry: %w", ErrMalformedPersistedData)
	assert.Equal(t, malformed, Classify(malformed))
	assert.NoError(t, Classify(nil))
}

func TestFailureKind(t *testing.T) {
	t.Parallel()

	f := Failure{Key: "a.py", Err: Classify(fs.ErrNotExist)}
	assert.Equal(t, ErrInputNotFound, f.Kind())
	assert.Contains(t, f.Error(), "a.py")
	assert.Nil(t, Failure{Key: "x", Err: errors.New("plain")}.Kind())
}

func TestTreeCounts(t *testing.T) {
	t.Parallel()

	tree := &Tree{Files: []FileNode{
		{Path: "a.py", Functions: []FunctionNode{
			{Name: "f", Procedures: []ProcedureNode{{Name: "stp_a"}, {Name: "stp_b"}}},
			{Name: "g"},
		}},
		{Path: "b.py", Functions: []FunctionNode{
			{Name: "h", Procedures: []ProcedureNode{{Name: "stp_a"}}},
		}},
	}}
	files, functions, procs := tree.Counts()
	assert.Equal(t, 2, files)
	assert.Equal(t, 3, functions)
	assert.Equal(t, 2, procs)
}
