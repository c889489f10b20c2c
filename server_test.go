package main

import (
	"reflect"
	"testing"
)

func TestSplitAndTrim(t *testing.T) {
	cases := map[string][]string{
		"":                  nil,
		"  ":                nil,
		"https://a.example": {"https://a.example"},
		" https://a.example , ,https://b.example ": {"https://a.example", "https://b.example"},
	}
	for in, want := range cases {
		if got := splitAndTrim(in); !reflect.DeepEqual(got, want) {
			t.Fatalf("splitAndTrim(%q) = %v, want %v", in, got, want)
		}
	}
}
