package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func makePages(numbers ...int) []*Page {
	pages := make([]*Page, len(numbers))
	for i, n := range numbers {
		pages[i] = &Page{ID: string(rune('a' + i)), PageNumber: n, Version: 1}
	}
	return pages
}

func TestBookHasContiguousPages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		numbers []int
		want    bool
	}{
		{"empty", nil, true},
		{"single", []int{1}, true},
		{"in order", []int{1, 2, 3}, true},
		{"out of order but complete", []int{3, 1, 2}, true},
		{"gap", []int{1, 2, 4}, false},
		{"duplicate", []int{1, 2, 2}, false},
		{"starts at zero", []int{0, 1, 2}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &Book{Pages: makePages(tt.numbers...)}
			assert.Equal(t, tt.want, b.HasContiguousPages())
		})
	}
}

func TestBookGeneratedPages_Sorted(t *testing.T) {
	t.Parallel()

	b := &Book{Pages: makePages(3, 1, 2)}
	pages := b.GeneratedPages()
	assert.Equal(t, []int{1, 2, 3}, []int{pages[0].PageNumber, pages[1].PageNumber, pages[2].PageNumber})
	// Original slice untouched.
	assert.Equal(t, 3, b.Pages[0].PageNumber)
}

func TestBookProgress(t *testing.T) {
	t.Parallel()

	b := &Book{TargetPages: 25, Pages: makePages(1, 2, 3, 4, 5)}
	assert.Equal(t, 20, b.Progress())

	b = &Book{TargetPages: 0}
	assert.Equal(t, 0, b.Progress())

	b = &Book{TargetPages: 2, Pages: makePages(1, 2, 3)}
	assert.Equal(t, 100, b.Progress())
}

func TestExportFormat(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "application/pdf", ExportFormatPDF.ContentType())
	assert.Equal(t, "zip", ExportFormatBundle.Extension())
	assert.Equal(t, "epub", ExportFormatEPUB.Extension())
	assert.True(t, ExportFormatDOCX.Valid())
	assert.False(t, ExportFormat("mobi").Valid())
}
