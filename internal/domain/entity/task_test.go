package entity_test

import (
	"math"
	"testing"

	"task-agent/internal/domain/entity"

	"github.com/stretchr/testify/assert"
)

func TestPaginate(t *testing.T) {
	tests := []struct {
		name              string
		total, page, size int
		wantStart         int
		wantEnd           int
		wantPages         int
	}{
		{name: "first page", total: 25, page: 1, size: 10, wantStart: 0, wantEnd: 10, wantPages: 3},
		{name: "last partial page", total: 25, page: 3, size: 10, wantStart: 20, wantEnd: 25, wantPages: 3},
		{name: "past the end", total: 25, page: 4, size: 10, wantStart: 25, wantEnd: 25, wantPages: 3},
		{name: "defaults", total: 5, page: 0, size: 0, wantStart: 0, wantEnd: 5, wantPages: 1},
		{name: "huge page on empty set", total: 0, page: math.MaxInt, size: 10, wantStart: 0, wantEnd: 0, wantPages: 0},
		{name: "huge page", total: 7, page: math.MaxInt, size: 10, wantStart: 7, wantEnd: 7, wantPages: 1},
		{name: "huge page size", total: 7, page: 1, size: math.MaxInt, wantStart: 0, wantEnd: 7, wantPages: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, start, end := entity.Paginate(tt.total, tt.page, tt.size)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantEnd, end)
			assert.Equal(t, tt.wantPages, p.TotalPages)
			assert.Equal(t, tt.total, p.TotalItems)
		})
	}
}
