package main

import "testing"

func TestDefaultOutputPath(t *testing.T) {
	cases := map[string]string{
		"data.csv":        "data.redacted.csv",
		"data.parquet":    "data.redacted.parquet",
		"data.jsonl":      "data.redacted.jsonl",
		"data.json":       "data.redacted.json",
		"dataset":         "dataset.redacted.csv",
		"export/rows.csv": "export/rows.redacted.csv",
	}
	for input, want := range cases {
		if got := defaultOutputPath(input); got != want {
			t.Errorf("defaultOutputPath(%q) = %q, want %q", input, got, want)
		}
	}
}
