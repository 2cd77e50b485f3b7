package pipeline

import (
	"reflect"
	"testing"
)

func TestExtractRefs(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []Ref
	}{
		{
			name: "empty",
			text: "",
			want: nil,
		},
		{
			name: "no refs",
			text: "just some instructions",
			want: nil,
		},
		{
			name: "single output ref",
			text: "summarize outputs.extract before continuing",
			want: []Ref{{Stage: "extract"}},
		},
		{
			name: "single input ref",
			text: "use input.query as the search term",
			want: []Ref{{Input: "query"}},
		},
		{
			name: "mixed refs",
			text: "combine outputs.fetch with input.format and outputs.rank",
			want: []Ref{{Stage: "fetch"}, {Stage: "rank"}, {Input: "format"}},
		},
		{
			name: "hyphenated and underscored names",
			text: "outputs.pre-process then input.user_id",
			want: []Ref{{Stage: "pre-process"}, {Input: "user_id"}},
		},
		{
			name: "not a ref mid-word",
			text: "myoutputs.foo and reinput.bar",
			want: nil,
		},
		{
			name: "duplicates preserved",
			text: "outputs.a and outputs.a again",
			want: []Ref{{Stage: "a"}, {Stage: "a"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractRefs(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractRefs(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestStageRefs_Deduped(t *testing.T) {
	def := StageDef{
		Name:         "report",
		Instructions: "use outputs.fetch and outputs.rank",
		Code:         "print(outputs.fetch)",
	}

	got := stageRefs(def)
	want := []string{"fetch", "rank"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("stageRefs = %v, want %v", got, want)
	}
}

func TestInputRefs_FirstSeenOrder(t *testing.T) {
	def := StageDef{
		Name:         "query",
		Instructions: "search input.topic in input.region",
		Code:         "q = input.topic",
	}

	got := inputRefs(def)
	want := []string{"topic", "region"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("inputRefs = %v, want %v", got, want)
	}
}
