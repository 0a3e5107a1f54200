package sentence

import "testing"

func TestSplit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "boundaries retained",
			text: "Hello there! How are you today? I missed you.",
			want: []string{"Hello there!", "How are you today?", "I missed you."},
		},
		{
			name: "newline is a boundary without being retained",
			text: "First line\nSecond line",
			want: []string{"First line", "Second line"},
		},
		{
			name: "trailing fragment emitted",
			text: "Complete sentence. and a dangling tail",
			want: []string{"Complete sentence.", "and a dangling tail"},
		},
		{
			name: "punctuation noise suppressed",
			text: "Wait... ! ?. Really now!",
			want: []string{"Wait.", "Really now!"},
		},
		{
			name: "empty input",
			text: "",
			want: nil,
		},
		{
			name: "pure punctuation",
			text: "?!...",
			want: nil,
		},
		{
			name: "single short token suppressed",
			text: "A.",
			want: nil,
		},
		{
			name: "single multibyte rune suppressed",
			text: "é.",
			want: nil,
		},
		{
			name: "two multibyte runes kept",
			text: "Où?",
			want: []string{"Où?"},
		},
	}

	s := NewSplitter(nil)
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := s.Split(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d units %v, want %d", len(got), got, len(tt.want))
			}
			for i := range got {
				if got[i].Text != tt.want[i] {
					t.Errorf("unit[%d] = %q, want %q", i, got[i].Text, tt.want[i])
				}
			}
		})
	}
}

func TestSplitStampsSingleEmotion(t *testing.T) {
	t.Parallel()

	calls := 0
	s := NewSplitter(func(text string) string {
		calls++
		return "happy"
	})

	units := s.Split("What a day! The sun is out. Even the chocobos are singing?")
	if calls != 1 {
		t.Errorf("emotion calls = %d, want exactly 1 per reply", calls)
	}
	if len(units) != 3 {
		t.Fatalf("got %d units, want 3", len(units))
	}
	for i, u := range units {
		if u.Emotion != "happy" {
			t.Errorf("unit[%d].Emotion = %q, want happy", i, u.Emotion)
		}
	}
}
