package longterm

import (
	"strings"
	"testing"
)

func TestEstimateImportance(t *testing.T) {
	t.Parallel()

	h := DefaultHeuristics()

	tests := []struct {
		name      string
		user      string
		assistant string
		want      Importance
	}{
		{"short smalltalk", "hi", "hello!", ImportanceLow},
		{"english signal phrase", "please remember my birthday is in June", "noted", ImportanceHigh},
		{"chinese signal phrase", "记住我的地址是北京", "好的", ImportanceHigh},
		{"signal phrase in assistant text", "ok", "this is important for you", ImportanceHigh},
		{"case insensitive match", "REMEMBER this", "ok", ImportanceHigh},
		{"long user message", strings.Repeat("a", 101), "ok", ImportanceMedium},
		{"long assistant message", "ok", strings.Repeat("b", 301), ImportanceMedium},
		{"signal beats length", "remember " + strings.Repeat("a", 200), "ok", ImportanceHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := h.EstimateImportance(tt.user, tt.assistant); got != tt.want {
				t.Errorf("EstimateImportance() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEstimateImportance_RuneThresholds(t *testing.T) {
	t.Parallel()

	h := DefaultHeuristics()

	// 100 CJK runes is not over the threshold even though it is 300 bytes.
	exactly := strings.Repeat("天", 100)
	if got := h.EstimateImportance(exactly, "ok"); got != ImportanceLow {
		t.Errorf("100 runes graded %q, want low", got)
	}
	if got := h.EstimateImportance(exactly+"天", "ok"); got != ImportanceMedium {
		t.Errorf("101 runes graded %q, want medium", got)
	}
}

func TestExtractKeywords(t *testing.T) {
	t.Parallel()

	h := DefaultHeuristics()

	got := h.ExtractKeywords("I like Hiking, and camping.", "great hobbies")
	want := []string{"like", "hiking", "camping", "great", "hobbies"}
	if len(got) != len(want) {
		t.Fatalf("keywords = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("keywords[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExtractKeywords_Cap(t *testing.T) {
	t.Parallel()

	h := Heuristics{}
	var words []string
	for i := 0; i < 20; i++ {
		words = append(words, "word"+strings.Repeat("x", i+1))
	}

	got := h.ExtractKeywords(strings.Join(words, " "), "")
	if len(got) != maxKeywords {
		t.Errorf("keyword count = %d, want %d", len(got), maxKeywords)
	}
}

func TestExtractKeywords_DropsShortAndStopWords(t *testing.T) {
	t.Parallel()

	h := DefaultHeuristics()

	got := h.ExtractKeywords("the a I x golang", "")
	if len(got) != 1 || got[0] != "golang" {
		t.Errorf("keywords = %v, want [golang]", got)
	}
}
