package builtin

import (
	"reflect"
	"testing"

	"plantload/pkg/records"
)

func mk(id any, reason any) records.Record {
	return records.Record{"id": id, "reason": reason}
}

func TestDeDupKeepFirst(t *testing.T) {
	in := []records.Record{mk(int64(10), "A"), mk(int64(11), "B"), mk(int64(10), "C")}
	var lost []int
	d := DeDup{Keys: []string{"id"}, OnDuplicate: func(_ string, i int) { lost = append(lost, i) }}
	got := d.Apply(in)
	want := []records.Record{mk(int64(10), "A"), mk(int64(11), "B")}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	if !reflect.DeepEqual(lost, []int{2}) {
		t.Fatalf("lost=%v", lost)
	}
}

func TestDeDupKeepLast(t *testing.T) {
	in := []records.Record{mk(1, "A"), mk(1, "B"), mk(2, "C")}
	got := DeDup{Keys: []string{"id"}, Policy: KeepLast}.Apply(in)
	want := []records.Record{mk(1, "B"), mk(2, "C")}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestDeDupMostComplete(t *testing.T) {
	in := []records.Record{mk(1, ""), mk(1, "B"), mk(1, "C")}
	got := DeDup{Keys: []string{"id"}, Policy: MostComplete}.Apply(in)
	if !reflect.DeepEqual(got, []records.Record{mk(1, "B")}) {
		t.Fatalf("got %v", got)
	}
}

func TestDeDupCanonicalKeys(t *testing.T) {
	in := []records.Record{mk(10, "int"), mk(int64(10), "int64"), mk("10", "string")}
	got := DeDup{Keys: []string{"id"}}.Apply(in)
	if len(got) != 1 || got[0]["reason"] != "int" {
		t.Fatalf("got %v", got)
	}
}

func TestDeDupPassesUnkeyed(t *testing.T) {
	in := []records.Record{{"reason": "loose"}, mk(1, "A"), mk(1, "B")}
	got := DeDup{Keys: []string{"id"}}.Apply(in)
	want := []records.Record{mk(1, "A"), {"reason": "loose"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}
