package emotion

import "testing"

func TestInfer(t *testing.T) {
	t.Parallel()

	cases := []struct {
		text string
		want Label
	}{
		{"I am so glad you came by today.", Happy},
		{"That makes me really happy", Happy},
		{"Unfortunately the rain ruined everything.", Sad},
		{"How dare you say that to me.", Angry},
		{"Wow, I did not expect that at all.", Surprised},
		{"The market opens at nine.", Neutral},
		{"", Neutral},
		// Anger outranks joy in mixed sentences.
		{"I love it here but I hate the crowds.", Angry},
		// Bare exclamation reads as excitement.
		{"Let's go!", Happy},
	}
	for _, tc := range cases {
		if got := Infer(tc.text); got != tc.want {
			t.Errorf("Infer(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}
