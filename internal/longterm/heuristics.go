package longterm

import (
	"strings"
	"unicode/utf8"
)

// DefaultSignalPhrases mark an exchange as high importance when present.
// The deployment started out Chinese-first; the English equivalents were
// added when the product grew a second audience.
var DefaultSignalPhrases = []string{
	"记住", "不要忘记", "重要", "必须", "请记住",
	"我的信息", "我的地址", "我的喜好", "我的偏好",
	"电话", "邮箱", "地址", "生日", "重要日期",
	"remember", "don't forget", "important",
	"my address", "my phone", "my email", "my birthday",
}

// DefaultStopWords are dropped during keyword extraction.
var DefaultStopWords = []string{
	"的", "了", "和", "是", "在", "我", "有", "你", "我们", "他", "她", "它", "这", "那", "都",
	"the", "a", "an", "is", "are", "was", "and", "or", "of", "to", "in", "it", "that", "this",
}

// Heuristics scores exchanges and extracts salient keywords for tagging
// records written to the long-term store. The phrase and stop-word sets are
// parameters, not algorithmic invariants; behavior is deterministic for the
// same input and configuration.
type Heuristics struct {
	SignalPhrases []string
	StopWords     []string
}

// DefaultHeuristics returns heuristics with the default phrase and
// stop-word sets.
func DefaultHeuristics() Heuristics {
	return Heuristics{
		SignalPhrases: DefaultSignalPhrases,
		StopWords:     DefaultStopWords,
	}
}

// Length thresholds for the medium importance grade, in runes.
const (
	mediumUserLen      = 100
	mediumAssistantLen = 300
)

// EstimateImportance grades an exchange. A signal-phrase match always
// dominates the length-based grade, regardless of text length.
func (h Heuristics) EstimateImportance(userText, assistantText string) Importance {
	combined := strings.ToLower(userText + " " + assistantText)
	for _, phrase := range h.SignalPhrases {
		if phrase != "" && strings.Contains(combined, strings.ToLower(phrase)) {
			return ImportanceHigh
		}
	}

	if utf8.RuneCountInString(userText) > mediumUserLen ||
		utf8.RuneCountInString(assistantText) > mediumAssistantLen {
		return ImportanceMedium
	}

	return ImportanceLow
}

// maxKeywords caps the number of extracted keywords per exchange.
const maxKeywords = 10

// keywordSeparator reports whether r splits tokens during extraction.
func keywordSeparator(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', ',', '.', '?', '!':
		return true
	}
	return false
}

// ExtractKeywords returns up to maxKeywords tokens from the combined
// exchange text, in original order. Tokens of length <= 1 rune and tokens
// in the stop-word set are discarded. No deduplication or frequency
// ranking is applied.
func (h Heuristics) ExtractKeywords(userText, assistantText string) []string {
	combined := strings.ToLower(userText + " " + assistantText)

	var keywords []string
	for _, token := range strings.FieldsFunc(combined, keywordSeparator) {
		if utf8.RuneCountInString(token) <= 1 {
			continue
		}
		if h.isStopWord(token) {
			continue
		}
		keywords = append(keywords, token)
		if len(keywords) == maxKeywords {
			break
		}
	}
	return keywords
}

func (h Heuristics) isStopWord(token string) bool {
	for _, w := range h.StopWords {
		if token == w {
			return true
		}
	}
	return false
}
