package canonicalize

import (
	"testing"
)

func TestJCS_Sorting(t *testing.T) {
	input := map[string]interface{}{
		"c": 3,
		"a": 1,
		"b": 2,
	}

	expected := `{"a":1,"b":2,"c":3}`

	b, err := JCS(input)
	if err != nil {
		t.Fatalf("JCS failed: %v", err)
	}

	if string(b) != expected {
		t.Errorf("Expected %s, got %s", expected, string(b))
	}
}

func TestJCS_RecursiveSorting(t *testing.T) {
	input := map[string]interface{}{
		"z": map[string]interface{}{
			"y": "foo",
			"x": "bar",
		},
		"a": 1,
	}

	expected := `{"a":1,"z":{"x":"bar","y":"foo"}}`

	b, err := JCS(input)
	if err != nil {
		t.Fatalf("JCS failed: %v", err)
	}

	if string(b) != expected {
		t.Errorf("Expected %s, got %s", expected, string(b))
	}
}

func TestJCS_NoHTMLEscaping(t *testing.T) {
	input := map[string]interface{}{
		"url": "https://example.com/a?b=1&c=<2>",
	}

	b, err := JCS(input)
	if err != nil {
		t.Fatalf("JCS failed: %v", err)
	}

	expected := `{"url":"https://example.com/a?b=1&c=<2>"}`
	if string(b) != expected {
		t.Errorf("Expected %s, got %s", expected, string(b))
	}
}

func TestJCS_StructTagsRespected(t *testing.T) {
	type entry struct {
		SeriesID    string `json:"series_id"`
		PayloadHash string `json:"payload_hash"`
	}

	b, err := JCS(entry{SeriesID: "EXR", PayloadHash: "abc"})
	if err != nil {
		t.Fatalf("JCS failed: %v", err)
	}

	expected := `{"payload_hash":"abc","series_id":"EXR"}`
	if string(b) != expected {
		t.Errorf("Expected %s, got %s", expected, string(b))
	}
}

func TestCanonicalHash_Stable(t *testing.T) {
	a := map[string]interface{}{"x": 1, "y": "z"}
	b := map[string]interface{}{"y": "z", "x": 1}

	ha, err := CanonicalHash(a)
	if err != nil {
		t.Fatal(err)
	}
	hb, err := CanonicalHash(b)
	if err != nil {
		t.Fatal(err)
	}

	if ha != hb {
		t.Errorf("hash should not depend on key order: %s vs %s", ha, hb)
	}
	if len(ha) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(ha))
	}
}

func TestNFC_Idempotent(t *testing.T) {
	// "é" as e + combining acute vs precomposed
	decomposed := "é"
	precomposed := "é"

	if NFC(decomposed) != NFC(precomposed) {
		t.Error("NFC should unify equivalent sequences")
	}
}
