package transformer

import (
	"reflect"
	"testing"

	"plantload/pkg/records"
)

/*
addFieldTransformer mutates each record in place by setting key -> value.
Used to verify mutation flows through Chain.
*/
type addFieldTransformer struct {
	key string
	val any
}

func (t addFieldTransformer) Apply(in []records.Record) []records.Record {
	for i := range in {
		in[i][t.key] = t.val
	}
	return in
}

func TestChain_OrderAndMutation(t *testing.T) {
	dropOdd := Func(func(in []records.Record) []records.Record {
		out := in[:0]
		for _, r := range in {
			if r["n"].(int)%2 == 0 {
				out = append(out, r)
			}
		}
		return out
	})
	in := []records.Record{{"n": 1}, {"n": 2}, {"n": 4}}
	got := Chain{addFieldTransformer{"tag", "x"}, dropOdd}.Apply(in)
	want := []records.Record{{"n": 2, "tag": "x"}, {"n": 4, "tag": "x"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestChain_Empty(t *testing.T) {
	in := []records.Record{{"a": 1}}
	if got := (Chain{}).Apply(in); !reflect.DeepEqual(got, in) {
		t.Fatalf("empty chain changed input: %v", got)
	}
}
