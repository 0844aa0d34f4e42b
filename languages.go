package translator

import (
	"strings"
	"unicode/utf8"
)

// Language is a detected or target language.
type Language struct {
	Code string // locale-style code such as "uk_ua"; empty for Unknown
	Name string // display name passed to backends, e.g. "Ukrainian"
}

// Unknown is returned when the heuristic cannot decide.
var Unknown = Language{Name: "Unknown"}

// AutoDetected stands in for the source language when a backend is asked to detect it.
var AutoDetected = Language{Code: AutoDetect, Name: "Auto-detected"}

// IsUnknown reports whether l carries no language code.
func (l Language) IsUnknown() bool {
	return l.Code == ""
}

type languageInfo struct {
	code string
	name string
	iso  string
}

// languages lists every target the core can resolve, in TargetFor order.
var languages = []languageInfo{
	{"uk_ua", "Ukrainian", "uk"},
	{"en_us", "English", "en"},
	{"ru_ru", "Russian", "ru"},
	{"es_es", "Spanish", "es"},
	{"fr_fr", "French", "fr"},
	{"de_de", "German", "de"},
	{"it_it", "Italian", "it"},
	{"pt_pt", "Portuguese", "pt"},
	{"zh_cn", "Chinese", "zh"},
	{"ja_jp", "Japanese", "ja"},
	{"ko_kr", "Korean", "ko"},
	{"ar_sa", "Arabic", "ar"},
	{"hi_in", "Hindi", "hi"},
	{"pl_pl", "Polish", "pl"},
	{"nl_nl", "Dutch", "nl"},
	{"sv_se", "Swedish", "sv"},
	{"no_no", "Norwegian", "no"},
	{"da_dk", "Danish", "da"},
	{"fi_fi", "Finnish", "fi"},
	{"cs_cz", "Czech", "cs"},
	{"hu_hu", "Hungarian", "hu"},
	{"ro_ro", "Romanian", "ro"},
	{"bg_bg", "Bulgarian", "bg"},
	{"el_gr", "Greek", "el"},
	{"tr_tr", "Turkish", "tr"},
	{"he_il", "Hebrew", "he"},
	{"th_th", "Thai", "th"},
	{"vi_vn", "Vietnamese", "vi"},
}

var (
	byCode = make(map[string]languageInfo, len(languages))
	byName = make(map[string]languageInfo, len(languages))
	byISO  = make(map[string]languageInfo, len(languages))
)

func init() {
	for _, l := range languages {
		byCode[l.code] = l
		byName[strings.ToLower(l.name)] = l
		byISO[l.iso] = l
	}
}

// DefaultTarget is used when a locale matches nothing in the table.
const DefaultTarget = "en_us"

// localeRule maps a locale to a target when it starts with prefix or
// contains any of the markers.
type localeRule struct {
	prefix  string
	markers []string
	target  string
}

// Order matters: the first matching rule wins, so "en_in" resolves to Hindi.
var localeRules = []localeRule{
	{"uk", []string{"ua"}, "uk_ua"},
	{"ru", []string{"ru"}, "ru_ru"},
	{"es", []string{"es"}, "es_es"},
	{"fr", []string{"fr"}, "fr_fr"},
	{"de", []string{"de"}, "de_de"},
	{"it", []string{"it"}, "it_it"},
	{"pt", []string{"pt", "br"}, "pt_pt"},
	{"zh", []string{"cn"}, "zh_cn"},
	{"ja", []string{"jp"}, "ja_jp"},
	{"ko", []string{"kr"}, "ko_kr"},
	{"ar", []string{"sa"}, "ar_sa"},
	{"hi", []string{"in"}, "hi_in"},
	{"pl", []string{"pl"}, "pl_pl"},
	{"nl", []string{"nl"}, "nl_nl"},
	{"sv", []string{"se"}, "sv_se"},
	{"no", []string{"no"}, "no_no"},
	{"da", []string{"dk"}, "da_dk"},
	{"fi", []string{"fi"}, "fi_fi"},
	{"cs", []string{"cz"}, "cs_cz"},
	{"hu", []string{"hu"}, "hu_hu"},
	{"ro", []string{"ro"}, "ro_ro"},
	{"bg", []string{"bg"}, "bg_bg"},
	{"el", []string{"gr"}, "el_gr"},
	{"tr", []string{"tr"}, "tr_tr"},
	{"he", []string{"il"}, "he_il"},
	{"th", []string{"th"}, "th_th"},
	{"vi", []string{"vn"}, "vi_vn"},
}

// TargetFor normalises an actor locale (e.g. "uk_UA", "de-at") to a target language code.
func TargetFor(locale string) string {
	locale = strings.ToLower(strings.TrimSpace(locale))
	if locale == "" {
		return DefaultTarget
	}
	for _, r := range localeRules {
		if strings.HasPrefix(locale, r.prefix) {
			return r.target
		}
		for _, m := range r.markers {
			if strings.Contains(locale, m) {
				return r.target
			}
		}
	}
	return DefaultTarget
}

// LanguageName returns the display name for a language code, or "Unknown".
func LanguageName(code string) string {
	if l, ok := byCode[strings.ToLower(code)]; ok {
		return l.name
	}
	if strings.EqualFold(code, AutoDetect) {
		return AutoDetected.Name
	}
	return Unknown.Name
}

// LanguageOf builds a Language from a code. Unrecognised codes yield Unknown.
func LanguageOf(code string) Language {
	if l, ok := byCode[strings.ToLower(code)]; ok {
		return Language{Code: l.code, Name: l.name}
	}
	if strings.EqualFold(code, AutoDetect) {
		return AutoDetected
	}
	return Unknown
}

// ISOCode maps a display name ("Ukrainian"), locale code ("uk_ua") or ISO
// code ("uk") to a two-letter ISO 639-1 code. "auto" and "Auto-detected"
// map to "auto"; anything else yields "".
func ISOCode(lang string) string {
	key := strings.ToLower(strings.TrimSpace(lang))
	if key == AutoDetect || key == strings.ToLower(AutoDetected.Name) {
		return AutoDetect
	}
	if l, ok := byName[key]; ok {
		return l.iso
	}
	if l, ok := byCode[key]; ok {
		return l.iso
	}
	if l, ok := byISO[key]; ok {
		return l.iso
	}
	return ""
}

// Detector guesses the language of a chat message.
type Detector interface {
	Detect(text string) Language
}

// MinDetectableLength is the shortest trimmed text, in runes, worth detecting.
const MinDetectableLength = 3

// ScriptRule attributes text to Language when at least Threshold of its
// runes satisfy Match.
type ScriptRule struct {
	Language  Language
	Match     func(rune) bool
	Threshold float64
}

// IsCyrillic matches the basic Cyrillic block U+0400–U+04FF.
func IsCyrillic(r rune) bool {
	return r >= 0x0400 && r <= 0x04FF
}

// IsASCIILetter matches a-z and A-Z.
func IsASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// DefaultScriptRules checks Cyrillic before Latin, both at 30%.
func DefaultScriptRules() []ScriptRule {
	return []ScriptRule{
		{Language: LanguageOf("uk_ua"), Match: IsCyrillic, Threshold: 0.3},
		{Language: LanguageOf("en_us"), Match: IsASCIILetter, Threshold: 0.3},
	}
}

// ScriptDetector is a character-class heuristic: it attributes text to the
// first rule whose script covers enough of it.
type ScriptDetector struct {
	rules []ScriptRule
}

// NewScriptDetector returns a detector over rules, or DefaultScriptRules when none are given.
func NewScriptDetector(rules ...ScriptRule) *ScriptDetector {
	if len(rules) == 0 {
		rules = DefaultScriptRules()
	}
	return &ScriptDetector{rules: rules}
}

// Detect implements Detector.
func (d *ScriptDetector) Detect(text string) Language {
	text = strings.TrimSpace(text)
	total := utf8.RuneCountInString(text)
	if total < MinDetectableLength {
		return Unknown
	}

	counts := make([]int, len(d.rules))
	for _, r := range text {
		for i, rule := range d.rules {
			if rule.Match(r) {
				counts[i]++
			}
		}
	}

	for i, rule := range d.rules {
		if float64(counts[i])/float64(total) >= rule.Threshold {
			return rule.Language
		}
	}
	return Unknown
}

// NeedsTranslation reports whether text, as seen by d, differs from the
// language an actor with locale reads. Undetectable text never needs translation.
func NeedsTranslation(d Detector, text, locale string) bool {
	detected := d.Detect(text)
	if detected.IsUnknown() {
		return false
	}
	return detected.Code != TargetFor(locale)
}

var _ Detector = (*ScriptDetector)(nil)
