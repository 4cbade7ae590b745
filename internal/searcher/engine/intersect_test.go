package engine

import (
	"reflect"
	"testing"

	"github.com/jayc-10/corpusearch/internal/indexer/index"
)

func TestIntersectSumsFrequencies(t *testing.T) {
	a := index.PostingList{{DocID: 1, TF: 2}, {DocID: 3, TF: 1, TFImportant: 1}, {DocID: 7, TF: 4}}
	b := index.PostingList{{DocID: 3, TF: 2, TFImportant: 1}, {DocID: 7, TF: 1}, {DocID: 9, TF: 5}}

	got := intersect([]index.PostingList{a, b})
	want := index.PostingList{
		{DocID: 3, TF: 3, TFImportant: 2},
		{DocID: 7, TF: 5},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("intersect = %v, want %v", got, want)
	}
}

func TestIntersectOrderIndependent(t *testing.T) {
	a := index.PostingList{{DocID: 0, TF: 1}, {DocID: 2, TF: 2}}
	b := index.PostingList{{DocID: 2, TF: 3}, {DocID: 4, TF: 1}}

	ab := intersect([]index.PostingList{a, b})
	ba := intersect([]index.PostingList{b, a})
	if !reflect.DeepEqual(ab, ba) {
		t.Errorf("intersect depends on list order: %v vs %v", ab, ba)
	}
}

func TestIntersectThreeLists(t *testing.T) {
	lists := []index.PostingList{
		{{DocID: 0, TF: 1}, {DocID: 1, TF: 1}, {DocID: 2, TF: 1}},
		{{DocID: 1, TF: 1}, {DocID: 2, TF: 1}},
		{{DocID: 2, TF: 1}, {DocID: 3, TF: 1}},
	}
	got := intersect(lists)
	want := index.PostingList{{DocID: 2, TF: 3}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("intersect = %v, want %v", got, want)
	}
}

func TestIntersectDisjoint(t *testing.T) {
	lists := []index.PostingList{
		{{DocID: 0, TF: 1}},
		{{DocID: 1, TF: 1}},
	}
	if got := intersect(lists); len(got) != 0 {
		t.Errorf("disjoint lists intersected to %v", got)
	}
}

func TestIntersectSingleList(t *testing.T) {
	a := index.PostingList{{DocID: 4, TF: 2, TFImportant: 1}}
	got := intersect([]index.PostingList{a})
	if !reflect.DeepEqual(got, a) {
		t.Errorf("single list intersect = %v, want %v", got, a)
	}
	// The result is a copy, not an alias of the input.
	got[0].TF = 99
	if a[0].TF != 2 {
		t.Error("intersect aliased its input list")
	}
}

func TestIntersectNoLists(t *testing.T) {
	if got := intersect(nil); got != nil {
		t.Errorf("intersect(nil) = %v, want nil", got)
	}
}
