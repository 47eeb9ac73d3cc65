// Package langdetect spots explicit "answer in <language>" requests in user text.
//
// Detection is a best-effort hint: it pattern-matches natural language, so both
// false positives and false negatives are expected.
package langdetect

import (
	"regexp"
	"strings"
)

// Code is an ISO 639-1 language code.
type Code string

// Language describes one supported target language.
type Language struct {
	Code   Code
	Name   string
	Native string
}

// Supported lists every language a reply can be translated into.
var Supported = []Language{
	{Code: "es", Name: "spanish", Native: "español"},
	{Code: "fr", Name: "french", Native: "français"},
	{Code: "de", Name: "german", Native: "deutsch"},
	{Code: "it", Name: "italian", Native: "italiano"},
	{Code: "pt", Name: "portuguese", Native: "português"},
	{Code: "ru", Name: "russian", Native: "русский"},
	{Code: "zh", Name: "chinese", Native: "中文"},
	{Code: "ja", Name: "japanese", Native: "日本語"},
	{Code: "ko", Name: "korean", Native: "한국어"},
	{Code: "ar", Name: "arabic", Native: "العربية"},
	{Code: "hi", Name: "hindi", Native: "हिन्दी"},
	{Code: "nl", Name: "dutch", Native: "nederlands"},
	{Code: "sv", Name: "swedish", Native: "svenska"},
	{Code: "pl", Name: "polish", Native: "polski"},
	{Code: "tr", Name: "turkish", Native: "türkçe"},
	{Code: "vi", Name: "vietnamese", Native: "tiếng việt"},
	{Code: "th", Name: "thai", Native: "ไทย"},
	{Code: "id", Name: "indonesian", Native: "bahasa indonesia"},
	{Code: "en", Name: "english", Native: "english"},
}

// Codes that are also common English words never match on their own.
var ambiguousCodes = map[Code]bool{
	"it": true,
	"id": true,
	"hi": true,
}

var requestKeywords = map[string]bool{
	"in":         true,
	"into":       true,
	"using":      true,
	"translate":  true,
	"translated": true,
	"language":   true,
}

// Letters and digits count as word characters, so boundaries also work for
// non-Latin scripts where \b does not.
const (
	boundaryStart = `(?:^|[^\p{L}\p{N}])`
	boundaryEnd   = `(?:[^\p{L}\p{N}]|$)`
)

var (
	phrasePatterns = buildPhrasePatterns()
	sentenceSplit  = regexp.MustCompile(`[.!?;\n]+`)
	wordPattern    = regexp.MustCompile(`[\p{L}\p{N}]+`)
)

type phrasePattern struct {
	code Code
	re   *regexp.Regexp
}

func buildPhrasePatterns() []phrasePattern {
	patterns := make([]phrasePattern, 0, len(Supported))
	for _, lang := range Supported {
		alts := []string{regexp.QuoteMeta(lang.Name)}
		if lang.Native != lang.Name {
			alts = append(alts, regexp.QuoteMeta(lang.Native))
		}
		expr := `(?i)` + boundaryStart +
			`(?:answer|respond|reply|speak|write|translate|talk)` +
			`(?:\s+(?:me|it|this|that|back|only))?` +
			`\s+(?:in|into|using)\s+` +
			`(?:` + strings.Join(alts, "|") + `)` + boundaryEnd
		patterns = append(patterns, phrasePattern{code: lang.Code, re: regexp.MustCompile(expr)})
	}
	return patterns
}

// Detect returns the language explicitly requested in text, if any.
func Detect(text string) (Code, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}

	for _, p := range phrasePatterns {
		if p.re.MatchString(text) {
			return p.code, true
		}
	}

	for _, sentence := range sentenceSplit.Split(strings.ToLower(text), -1) {
		if code, ok := detectInSentence(sentence); ok {
			return code, true
		}
	}
	return "", false
}

// maxKeywordDistance is how many words may separate a keyword and a language name.
const maxKeywordDistance = 3

func detectInSentence(sentence string) (Code, bool) {
	words := wordPattern.FindAllString(sentence, -1)
	if len(words) < 2 {
		return "", false
	}

	for i, word := range words {
		lang, byCode, ok := lookupWord(word, words, i)
		if !ok {
			continue
		}
		if byCode {
			// Bare codes only count right after a keyword: "in es".
			if i > 0 && requestKeywords[words[i-1]] {
				return lang.Code, true
			}
			continue
		}
		lo := max(0, i-maxKeywordDistance)
		hi := min(len(words)-1, i+maxKeywordDistance)
		for j := lo; j <= hi; j++ {
			if j != i && requestKeywords[words[j]] {
				return lang.Code, true
			}
		}
	}
	return "", false
}

// lookupWord matches words[i] against names, native names and codes.
// Two-word native names such as "tiếng việt" are matched against the following word too.
func lookupWord(word string, words []string, i int) (Language, bool, bool) {
	for _, lang := range Supported {
		if word == lang.Name || word == lang.Native {
			return lang, false, true
		}
		if first, rest, found := strings.Cut(lang.Native, " "); found && word == first && i+1 < len(words) && words[i+1] == rest {
			return lang, false, true
		}
	}
	for _, lang := range Supported {
		if word == string(lang.Code) && !ambiguousCodes[lang.Code] {
			return lang, true, true
		}
	}
	return Language{}, false, false
}

// Lookup returns the supported language for code.
func Lookup(code Code) (Language, bool) {
	for _, lang := range Supported {
		if lang.Code == code {
			return lang, true
		}
	}
	return Language{}, false
}
