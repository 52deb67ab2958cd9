package swatchdata

import (
	"errors"
	"testing"
)

const strictJSON = `[
	{"color_name":"Forest","color_value":"#1b4d3e","product_id":"p-100","is_current":true,
	 "images":[{"url":"https://cdn.example/forest-1.jpg","alt":"front"}]},
	{"color_name":"Sand","product_id":"p-101",
	 "image_url":"https://cdn.example/sand.jpg","image_alt":"sand"}
]`

func TestParse_Strict(t *testing.T) {
	records, err := Parse(strictJSON)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records: got %d, want 2", len(records))
	}
	if records[0].ColorName != "Forest" {
		t.Errorf("ColorName: got %q, want %q", records[0].ColorName, "Forest")
	}
	if !records[0].IsCurrent {
		t.Error("records[0].IsCurrent: got false, want true")
	}
}

func TestParse_EntityEscaped(t *testing.T) {
	escaped := `[{&quot;color_name&quot;:&quot;Slate&quot;,&#34;product_id&#34;:&#34;p-102&#34;}]`
	records, err := Parse(escaped)
	if err != nil {
		t.Fatalf("Parse escaped: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records: got %d, want 1", len(records))
	}
	if records[0].ColorName != "Slate" {
		t.Errorf("ColorName: got %q, want %q", records[0].ColorName, "Slate")
	}
}

func TestParse_AmpersandInValue(t *testing.T) {
	escaped := `[{&quot;color_name&quot;:&quot;Rust &amp; Bone&quot;}]`
	records, err := Parse(escaped)
	if err != nil {
		t.Fatalf("Parse escaped: %v", err)
	}
	if records[0].ColorName != "Rust & Bone" {
		t.Errorf("ColorName: got %q, want %q", records[0].ColorName, "Rust & Bone")
	}
}

func TestParse_DoubleFailure(t *testing.T) {
	_, err := Parse(`{{{not json`)
	if err == nil {
		t.Fatal("Parse: got nil error, want *DataError")
	}
	var dataErr *DataError
	if !errors.As(err, &dataErr) {
		t.Fatalf("error type: got %T, want *DataError", err)
	}
}

func TestParse_Empty(t *testing.T) {
	for _, raw := range []string{"", "   ", "[]"} {
		if _, err := Parse(raw); err == nil {
			t.Errorf("Parse(%q): got nil error, want *DataError", raw)
		}
	}
}

func TestFindCurrentIndex(t *testing.T) {
	tests := []struct {
		name    string
		records []Record
		want    int
	}{
		{"none marked", []Record{{}, {}, {}}, 0},
		{"first marked", []Record{{IsCurrent: true}, {}}, 0},
		{"middle marked", []Record{{}, {IsCurrent: true}, {}}, 1},
		{"first of several", []Record{{}, {IsCurrent: true}, {IsCurrent: true}}, 1},
		{"empty list", nil, 0},
	}
	for _, tt := range tests {
		if got := FindCurrentIndex(tt.records); got != tt.want {
			t.Errorf("%s: got %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestImageList_Fallback(t *testing.T) {
	rec := Record{ImageURL: "https://cdn.example/one.jpg", ImageAlt: "one"}
	images := rec.ImageList()
	if len(images) != 1 {
		t.Fatalf("images: got %d, want 1", len(images))
	}
	if images[0].URL != "https://cdn.example/one.jpg" {
		t.Errorf("URL: got %q", images[0].URL)
	}

	rec.Images = []Image{{URL: "a"}, {URL: "b"}}
	if got := len(rec.ImageList()); got != 2 {
		t.Errorf("images with set: got %d, want 2", got)
	}

	if got := len(Record{}.ImageList()); got != 0 {
		t.Errorf("empty record images: got %d, want 0", got)
	}
}
