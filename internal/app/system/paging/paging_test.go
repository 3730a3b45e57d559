package paging

import (
	"net/http/httptest"
	"testing"
)

func TestLimitPlusOne(t *testing.T) {
	want := int64(PageSize + 1)
	got := LimitPlusOne()
	if got != want {
		t.Errorf("LimitPlusOne() = %d, want %d", got, want)
	}
}

func TestParseStart(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 1},
		{"?start=1", 1},
		{"?start=51", 51},
		{"?start=0", 1},
		{"?start=-4", 1},
		{"?start=abc", 1},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", "/posts"+tt.query, nil)
		if got := ParseStart(r); got != tt.want {
			t.Errorf("ParseStart(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}

func TestSkip(t *testing.T) {
	if got := Skip(1); got != 0 {
		t.Errorf("Skip(1) = %d, want 0", got)
	}
	if got := Skip(PageSize + 1); got != int64(PageSize) {
		t.Errorf("Skip(%d) = %d, want %d", PageSize+1, got, PageSize)
	}
	if got := Skip(0); got != 0 {
		t.Errorf("Skip(0) = %d, want 0", got)
	}
}

func TestTrimPage(t *testing.T) {
	tests := []struct {
		name          string
		rows          []int
		start         int
		wantLen       int
		wantHasNext   bool
		wantNextStart int
	}{
		{"nil rows", nil, 1, 0, false, 0},
		{"partial page", []int{1, 2, 3}, 1, 3, false, 0},
		{"exact page", make([]int, PageSize), 1, PageSize, false, 0},
		{"look-ahead row present", make([]int, PageSize+1), 1, PageSize, true, PageSize + 1},
		{"second page with more", make([]int, PageSize+1), PageSize + 1, PageSize, true, 2*PageSize + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := TrimPage(tt.rows, tt.start)
			if p.Items == nil {
				t.Fatal("Items must never be nil")
			}
			if len(p.Items) != tt.wantLen {
				t.Errorf("len(Items) = %d, want %d", len(p.Items), tt.wantLen)
			}
			if p.HasNext != tt.wantHasNext {
				t.Errorf("HasNext = %v, want %v", p.HasNext, tt.wantHasNext)
			}
			if p.NextStart != tt.wantNextStart {
				t.Errorf("NextStart = %d, want %d", p.NextStart, tt.wantNextStart)
			}
		})
	}
}
