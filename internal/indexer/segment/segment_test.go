package segment

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/jayc-10/corpusearch/internal/indexer/index"
)

func readLines(t *testing.T, path string) []index.TermEntry {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	var entries []index.TermEntry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var entry index.TermEntry
		if err := json.Unmarshal(sc.Bytes(), &entry); err != nil {
			t.Fatalf("parsing %s: %v", path, err)
		}
		entries = append(entries, entry)
	}
	if err := sc.Err(); err != nil {
		t.Fatal(err)
	}
	return entries
}

func TestWriterSortsTermsAndPostings(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	table := map[string]index.PostingList{
		"zebra": {{DocID: 3, TF: 1}, {DocID: 1, TF: 2}},
		"apple": {{DocID: 0, TF: 5}},
		"mango": {{DocID: 2, TF: 1}, {DocID: 0, TF: 1}},
	}
	path, err := w.Write(0, table)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "seg_00000.jsonl" {
		t.Errorf("segment name = %s", filepath.Base(path))
	}

	entries := readLines(t, path)
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i-1].Term >= entries[i].Term {
			t.Errorf("terms out of order: %q before %q", entries[i-1].Term, entries[i].Term)
		}
	}
	for _, entry := range entries {
		for i := 1; i < len(entry.Postings); i++ {
			if entry.Postings[i-1].DocID >= entry.Postings[i].DocID {
				t.Errorf("term %q postings out of order: %+v", entry.Term, entry.Postings)
			}
		}
	}
}

func TestWriterRejectsEmptyTable(t *testing.T) {
	w := NewWriter(t.TempDir())
	if _, err := w.Write(0, nil); err == nil {
		t.Error("expected error for empty table")
	}
}

func TestWriterLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	if _, err := w.Write(7, map[string]index.PostingList{"a": {{DocID: 0, TF: 1}}}); err != nil {
		t.Fatal(err)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if len(matches) != 0 {
		t.Errorf("temp files left behind: %v", matches)
	}
}

func TestMergeCombinesSegments(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	p1, err := w.Write(0, map[string]index.PostingList{
		"cat": {{DocID: 0, TF: 2, TFImportant: 1}, {DocID: 1, TF: 1}},
		"dog": {{DocID: 1, TF: 3}},
	})
	if err != nil {
		t.Fatal(err)
	}
	p2, err := w.Write(1, map[string]index.PostingList{
		"cat":  {{DocID: 2, TF: 4}},
		"bird": {{DocID: 3, TF: 1}},
	})
	if err != nil {
		t.Fatal(err)
	}

	indexPath := filepath.Join(dir, "index.jsonl")
	lexiconPath := filepath.Join(dir, "index_lexicon.json")
	stats, err := NewMerger().Merge([]string{p1, p2}, indexPath, lexiconPath)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Terms != 3 {
		t.Errorf("Terms = %d, want 3", stats.Terms)
	}
	if stats.SegmentsMerged != 2 || stats.SegmentsSkipped != 0 {
		t.Errorf("merged %d skipped %d", stats.SegmentsMerged, stats.SegmentsSkipped)
	}

	entries := readLines(t, indexPath)
	wantTerms := []string{"bird", "cat", "dog"}
	var gotTerms []string
	for _, e := range entries {
		gotTerms = append(gotTerms, e.Term)
	}
	if !reflect.DeepEqual(gotTerms, wantTerms) {
		t.Errorf("terms = %v, want %v", gotTerms, wantTerms)
	}

	wantCat := index.PostingList{
		{DocID: 0, TF: 2, TFImportant: 1},
		{DocID: 1, TF: 1},
		{DocID: 2, TF: 4},
	}
	if !reflect.DeepEqual(entries[1].Postings, wantCat) {
		t.Errorf("cat postings = %+v, want %+v", entries[1].Postings, wantCat)
	}
}

func TestMergeLexiconOffsetsSeekToTheirTerm(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	path, err := w.Write(0, map[string]index.PostingList{
		"alpha": {{DocID: 0, TF: 1}},
		"beta":  {{DocID: 1, TF: 2}},
		"gamma": {{DocID: 2, TF: 3, TFImportant: 1}},
	})
	if err != nil {
		t.Fatal(err)
	}
	indexPath := filepath.Join(dir, "index.jsonl")
	lexiconPath := filepath.Join(dir, "index_lexicon.json")
	if _, err := NewMerger().Merge([]string{path}, indexPath, lexiconPath); err != nil {
		t.Fatal(err)
	}

	lexData, err := os.ReadFile(lexiconPath)
	if err != nil {
		t.Fatal(err)
	}
	var lexicon map[string]int64
	if err := json.Unmarshal(lexData, &lexicon); err != nil {
		t.Fatal(err)
	}
	if len(lexicon) != 3 {
		t.Fatalf("lexicon has %d terms, want 3", len(lexicon))
	}

	f, err := os.Open(indexPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	for term, offset := range lexicon {
		if _, err := f.Seek(offset, 0); err != nil {
			t.Fatal(err)
		}
		line, err := bufio.NewReader(f).ReadBytes('\n')
		if err != nil {
			t.Fatalf("reading line for %q at %d: %v", term, offset, err)
		}
		var entry index.TermEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			t.Fatal(err)
		}
		if entry.Term != term {
			t.Errorf("offset %d for %q landed on %q", offset, term, entry.Term)
		}
	}
}

func TestMergeDeletesSegments(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	path, err := w.Write(0, map[string]index.PostingList{"x": {{DocID: 0, TF: 1}}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewMerger().Merge([]string{path},
		filepath.Join(dir, "index.jsonl"), filepath.Join(dir, "index_lexicon.json")); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("segment %s still exists after merge", path)
	}
}

func TestMergeSkipsCorruptSegment(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	good, err := w.Write(0, map[string]index.PostingList{
		"keep": {{DocID: 0, TF: 1}},
	})
	if err != nil {
		t.Fatal(err)
	}
	corrupt := filepath.Join(dir, "seg_00001.jsonl")
	if err := os.WriteFile(corrupt, []byte("{\"term\": \"broken\", \"postings\": [[1,\n"), 0644); err != nil {
		t.Fatal(err)
	}

	indexPath := filepath.Join(dir, "index.jsonl")
	stats, err := NewMerger().Merge([]string{good, corrupt}, indexPath, filepath.Join(dir, "index_lexicon.json"))
	if err != nil {
		t.Fatal(err)
	}
	if stats.SegmentsSkipped != 1 || stats.SegmentsMerged != 1 {
		t.Errorf("merged %d skipped %d, want 1 and 1", stats.SegmentsMerged, stats.SegmentsSkipped)
	}
	entries := readLines(t, indexPath)
	if len(entries) != 1 || entries[0].Term != "keep" {
		t.Errorf("index entries = %+v", entries)
	}
}

func TestMergeMissingSegmentIsSkipped(t *testing.T) {
	dir := t.TempDir()
	stats, err := NewMerger().Merge([]string{filepath.Join(dir, "seg_00000.jsonl")},
		filepath.Join(dir, "index.jsonl"), filepath.Join(dir, "index_lexicon.json"))
	if err != nil {
		t.Fatal(err)
	}
	if stats.SegmentsSkipped != 1 {
		t.Errorf("SegmentsSkipped = %d, want 1", stats.SegmentsSkipped)
	}
	if stats.Terms != 0 {
		t.Errorf("Terms = %d, want 0", stats.Terms)
	}
}

func TestMergeEquivalentToSingleSegmentBuild(t *testing.T) {
	full := map[string]index.PostingList{
		"ant":  {{DocID: 0, TF: 1}, {DocID: 2, TF: 2}, {DocID: 4, TF: 1}},
		"bee":  {{DocID: 1, TF: 3}, {DocID: 3, TF: 1}},
		"wasp": {{DocID: 4, TF: 2, TFImportant: 2}},
	}

	split := func(pred func(id int) bool) map[string]index.PostingList {
		part := make(map[string]index.PostingList)
		for term, pl := range full {
			for _, p := range pl {
				if pred(p.DocID) {
					part[term] = append(part[term], p)
				}
			}
		}
		return part
	}

	oneDir := t.TempDir()
	w1 := NewWriter(oneDir)
	single, err := w1.Write(0, full)
	if err != nil {
		t.Fatal(err)
	}
	onePath := filepath.Join(oneDir, "index.jsonl")
	if _, err := NewMerger().Merge([]string{single}, onePath, filepath.Join(oneDir, "lex.json")); err != nil {
		t.Fatal(err)
	}

	twoDir := t.TempDir()
	w2 := NewWriter(twoDir)
	first, err := w2.Write(0, split(func(id int) bool { return id < 3 }))
	if err != nil {
		t.Fatal(err)
	}
	second, err := w2.Write(1, split(func(id int) bool { return id >= 3 }))
	if err != nil {
		t.Fatal(err)
	}
	twoPath := filepath.Join(twoDir, "index.jsonl")
	if _, err := NewMerger().Merge([]string{first, second}, twoPath, filepath.Join(twoDir, "lex.json")); err != nil {
		t.Fatal(err)
	}

	oneData, err := os.ReadFile(onePath)
	if err != nil {
		t.Fatal(err)
	}
	twoData, err := os.ReadFile(twoPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(oneData) != string(twoData) {
		t.Errorf("single-segment and two-segment builds differ:\n%s\nvs\n%s", oneData, twoData)
	}
}

func TestMergeWithNoSegmentsWritesEmptyIndex(t *testing.T) {
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "index.jsonl")
	lexiconPath := filepath.Join(dir, "index_lexicon.json")
	stats, err := NewMerger().Merge(nil, indexPath, lexiconPath)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Terms != 0 {
		t.Errorf("Terms = %d, want 0", stats.Terms)
	}
	data, err := os.ReadFile(lexiconPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "{}" {
		t.Errorf("empty lexicon = %s, want {}", data)
	}

	var lexicon map[string]int64
	if err := json.Unmarshal(data, &lexicon); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(indexPath)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 0 {
		t.Errorf("empty index file size = %d, want 0", info.Size())
	}
}
