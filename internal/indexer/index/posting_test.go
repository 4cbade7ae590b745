package index

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestPostingMarshalTriple(t *testing.T) {
	p := Posting{DocID: 12, TF: 3, TFImportant: 1}
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[12,3,1]" {
		t.Errorf("marshal = %s, want [12,3,1]", data)
	}
}

func TestPostingUnmarshalTriple(t *testing.T) {
	var p Posting
	if err := json.Unmarshal([]byte("[7,0,2]"), &p); err != nil {
		t.Fatal(err)
	}
	want := Posting{DocID: 7, TF: 0, TFImportant: 2}
	if p != want {
		t.Errorf("unmarshal = %+v, want %+v", p, want)
	}
}

func TestPostingUnmarshalRejectsWrongArity(t *testing.T) {
	for _, in := range []string{"[1,2]", "[1,2,3,4]", "[]"} {
		var p Posting
		if err := json.Unmarshal([]byte(in), &p); err == nil {
			t.Errorf("unmarshal %s: expected error, got %+v", in, p)
		}
	}
}

func TestPostingUnmarshalRejectsNonArray(t *testing.T) {
	var p Posting
	if err := json.Unmarshal([]byte(`{"doc":1}`), &p); err == nil {
		t.Error("expected error for object form")
	}
}

func TestTermEntryRoundTrip(t *testing.T) {
	entry := TermEntry{
		Term:     "cavern",
		Postings: PostingList{{0, 2, 1}, {3, 1, 0}},
	}
	data, err := json.Marshal(entry)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"term":"cavern","postings":[[0,2,1],[3,1,0]]}`
	if string(data) != want {
		t.Errorf("marshal = %s, want %s", data, want)
	}
	var back TermEntry
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(back, entry) {
		t.Errorf("round trip = %+v, want %+v", back, entry)
	}
}

func TestPostingListSort(t *testing.T) {
	pl := PostingList{{9, 1, 0}, {2, 1, 0}, {5, 3, 1}}
	pl.Sort()
	for i := 1; i < len(pl); i++ {
		if pl[i-1].DocID >= pl[i].DocID {
			t.Fatalf("not sorted by doc id: %+v", pl)
		}
	}
}

func TestAccumulatorAdd(t *testing.T) {
	acc := NewAccumulator()
	acc.Add(0, map[string]int{"cat": 2, "dog": 1}, map[string]int{"cat": 1})
	acc.Add(1, map[string]int{"dog": 3}, nil)

	if acc.Docs() != 2 {
		t.Errorf("Docs = %d, want 2", acc.Docs())
	}
	if acc.Terms() != 2 {
		t.Errorf("Terms = %d, want 2", acc.Terms())
	}

	table := acc.Drain()
	wantCat := PostingList{{DocID: 0, TF: 2, TFImportant: 1}}
	if !reflect.DeepEqual(table["cat"], wantCat) {
		t.Errorf("cat postings = %+v, want %+v", table["cat"], wantCat)
	}
	wantDog := PostingList{{DocID: 0, TF: 1}, {DocID: 1, TF: 3}}
	if !reflect.DeepEqual(table["dog"], wantDog) {
		t.Errorf("dog postings = %+v, want %+v", table["dog"], wantDog)
	}
}

func TestAccumulatorImportantOnlyTerm(t *testing.T) {
	acc := NewAccumulator()
	acc.Add(4, map[string]int{"body": 1}, map[string]int{"title": 2})
	table := acc.Drain()
	want := PostingList{{DocID: 4, TF: 0, TFImportant: 2}}
	if !reflect.DeepEqual(table["title"], want) {
		t.Errorf("title postings = %+v, want %+v", table["title"], want)
	}
}

func TestAccumulatorDrainResets(t *testing.T) {
	acc := NewAccumulator()
	acc.Add(0, map[string]int{"x": 1}, nil)
	first := acc.Drain()
	if len(first) != 1 {
		t.Fatalf("first drain = %v", first)
	}
	if !acc.Empty() || acc.Docs() != 0 {
		t.Error("accumulator not reset after drain")
	}
	acc.Add(1, map[string]int{"y": 1}, nil)
	second := acc.Drain()
	if _, ok := second["x"]; ok {
		t.Error("second drain leaked postings from first batch")
	}
}

func TestAccumulatorEmptyDocCountsTowardBatch(t *testing.T) {
	acc := NewAccumulator()
	acc.Add(0, nil, nil)
	if acc.Docs() != 1 {
		t.Errorf("Docs = %d, want 1", acc.Docs())
	}
	if !acc.Empty() {
		t.Error("accumulator with no postings should report Empty")
	}
}

func TestAccumulatorPostingsSortedByConstruction(t *testing.T) {
	acc := NewAccumulator()
	for id := 0; id < 50; id++ {
		acc.Add(id, map[string]int{"common": 1}, nil)
	}
	table := acc.Drain()
	pl := table["common"]
	for i := 1; i < len(pl); i++ {
		if pl[i-1].DocID >= pl[i].DocID {
			t.Fatalf("postings out of order at %d: %+v", i, pl[i-1:i+1])
		}
	}
}
