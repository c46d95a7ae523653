package tag_test

import (
	"testing"

	"github.com/ossyrian/wadsplit/internal/tag"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  tag.Tag
	}{
		{name: "map info", input: "Minf", want: 0x4D696E66},
		{name: "pict", input: "PICT", want: 0x50494354},
		{name: "short string is space padded", input: "snd", want: 0x736E6420},
		{name: "long string is truncated", input: "TEXTS", want: 0x54455854},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tag.New(tt.input); got != tt.want {
				t.Errorf("New(%q) = 0x%08X, want 0x%08X", tt.input, uint32(got), uint32(tt.want))
			}
		})
	}
}

func TestParse(t *testing.T) {
	if _, err := tag.Parse("abc"); err == nil {
		t.Error("Parse(\"abc\") succeeded unexpectedly, wanted error")
	}

	got, err := tag.Parse("clut")
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if got.String() != "clut" {
		t.Errorf("String() = %q, want %q", got.String(), "clut")
	}
}

func TestPrintable(t *testing.T) {
	if !tag.New("snd ").Printable() {
		t.Error("'snd ' should be printable")
	}
	if tag.Tag(0x70687900).Printable() {
		t.Error("tag with a NUL byte should not be printable")
	}
}
