package langdetect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   Code
		wantOK bool
	}{
		{name: "answer in spanish", text: "Please answer in Spanish", want: "es", wantOK: true},
		{name: "upper case", text: "RESPOND IN FRENCH", want: "fr", wantOK: true},
		{name: "translate into", text: "Can you translate this into German?", want: "de", wantOK: true},
		{name: "code after verb", text: "reply in pt", want: "pt", wantOK: true},
		{name: "native name", text: "Write it in 日本語", want: "ja", wantOK: true},
		{name: "native latin name", text: "talk to me? no, speak in Español", want: "es", wantOK: true},
		{name: "keyword near name", text: "I want the summary in korean, thanks", want: "ko", wantOK: true},
		{name: "two word native name", text: "Give me the recipe in tiếng việt", want: "vi", wantOK: true},
		{name: "language keyword after name", text: "Use the Dutch language for this", want: "nl", wantOK: true},
		{name: "bare code after keyword", text: "the same list but in ru", want: "ru", wantOK: true},
		{name: "no language cue", text: "What is the capital of France?", wantOK: false},
		{name: "language without keyword", text: "Tell me about the German economy", wantOK: false},
		{name: "ambiguous code ignored", text: "Put it in the box and translate it", wantOK: false},
		{name: "keyword in other sentence", text: "I'm learning Swedish. Can you help me in math?", wantOK: false},
		{name: "addressee is not a language request", text: "Reply to German customers politely", wantOK: false},
		{name: "addressee then language", text: "speak to me in English", want: "en", wantOK: true},
		{name: "empty", text: "   ", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Detect(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestSupportedTable(t *testing.T) {
	assert.Len(t, Supported, 19)

	seen := map[Code]bool{}
	for _, lang := range Supported {
		assert.False(t, seen[lang.Code], "duplicate code %s", lang.Code)
		seen[lang.Code] = true
	}

	lang, ok := Lookup("es")
	assert.True(t, ok)
	assert.Equal(t, "spanish", lang.Name)

	_, ok = Lookup("xx")
	assert.False(t, ok)
}
