package language

import "strings"

type entry struct {
	code2   string   // ISO 639-1
	code3   string   // ISO 639-2/T, the stored form
	alt3    []string // ISO 639-2/B and other three-letter aliases
	display string
	words   []string
}

var languages = []entry{
	{"nl", "nld", []string{"dut"}, "Dutch", []string{"dutch", "nederlands"}},
	{"en", "eng", nil, "English", []string{"english"}},
	{"de", "deu", []string{"ger"}, "German", []string{"german", "deutsch"}},
	{"fr", "fra", []string{"fre"}, "French", []string{"french", "francais", "français"}},
	{"es", "spa", nil, "Spanish", []string{"spanish", "español"}},
	{"it", "ita", nil, "Italian", []string{"italian"}},
	{"pt", "por", nil, "Portuguese", []string{"portuguese"}},
	{"fy", "fry", nil, "Frisian", []string{"frisian", "frysk"}},
	{"sv", "swe", nil, "Swedish", []string{"swedish"}},
	{"da", "dan", nil, "Danish", []string{"danish"}},
	{"no", "nor", nil, "Norwegian", []string{"norwegian"}},
	{"fi", "fin", nil, "Finnish", []string{"finnish"}},
	{"pl", "pol", nil, "Polish", []string{"polish"}},
	{"el", "ell", []string{"gre"}, "Greek", []string{"greek"}},
	{"tr", "tur", nil, "Turkish", []string{"turkish"}},
	{"ar", "ara", nil, "Arabic", []string{"arabic"}},
	{"zh", "zho", []string{"chi"}, "Chinese", []string{"chinese"}},
	{"ja", "jpn", nil, "Japanese", []string{"japanese"}},
	{"ko", "kor", nil, "Korean", []string{"korean"}},
}

var index map[string]*entry

func init() {
	index = make(map[string]*entry, len(languages)*4)
	for i := range languages {
		e := &languages[i]
		index[e.code2] = e
		index[e.code3] = e
		for _, alt := range e.alt3 {
			index[alt] = e
		}
		for _, w := range e.words {
			index[w] = e
		}
	}
}

func lookup(value string) *entry {
	return index[strings.ToLower(strings.TrimSpace(value))]
}

// Canonical returns the stored three-letter code for a two- or three-letter
// code, a bibliographic alias such as "dut", or an English or native name.
// Unknown three-letter codes pass through lowercased; anything else is
// rejected.
func Canonical(value string) (string, bool) {
	if e := lookup(value); e != nil {
		return e.code3, true
	}
	code := strings.ToLower(strings.TrimSpace(value))
	if len(code) == 3 && isLetters(code) {
		return code, true
	}
	return "", false
}

// DisplayName returns the English name for a recognized code or name, or the
// uppercased input otherwise.
func DisplayName(value string) string {
	if e := lookup(value); e != nil {
		return e.display
	}
	return strings.ToUpper(strings.TrimSpace(value))
}

func isLetters(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
