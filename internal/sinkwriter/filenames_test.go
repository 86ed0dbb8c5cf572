package sinkwriter

import "testing"

func TestCommittedFilenameRoundTrip(t *testing.T) {
	name := committedFilename("orders", 3, 100, 205, 20, "parquet")
	want := "orders+3+00000000000000000100+00000000000000000205.parquet"
	if name != want {
		t.Fatalf("committedFilename = %q, want %q", name, want)
	}

	topic, partition, start, end, ok := parseCommittedFilename(name)
	if !ok {
		t.Fatalf("parseCommittedFilename failed to parse %q", name)
	}
	if topic != "orders" || partition != 3 || start != 100 || end != 205 {
		t.Fatalf("parsed (%q, %d, %d, %d), want (orders, 3, 100, 205)", topic, partition, start, end)
	}
}

func TestParseCommittedFilenameRejectsGarbage(t *testing.T) {
	cases := []string{
		"log",
		"orders+3+100.parquet",
		"orders+notanumber+100+205.parquet",
		"",
	}
	for _, c := range cases {
		if _, _, _, _, ok := parseCommittedFilename(c); ok {
			t.Errorf("parseCommittedFilename(%q) should fail, but reported ok", c)
		}
	}
}

func TestTempFilePathNamespacesUnderTmpSubtree(t *testing.T) {
	path := tempFilePath("topics/orders/x", "x", 7, "bin")
	want := "topics/orders/x/+tmp/x-7.bin"
	if path != want {
		t.Fatalf("tempFilePath = %q, want %q", path, want)
	}
}
