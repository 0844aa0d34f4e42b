package translator

import (
	"fmt"
	"strings"
	"unicode/utf8"

	lingua "github.com/pemistahl/lingua-go"
)

var linguaLanguages = map[string]lingua.Language{
	"uk_ua": lingua.Ukrainian,
	"en_us": lingua.English,
	"ru_ru": lingua.Russian,
	"es_es": lingua.Spanish,
	"fr_fr": lingua.French,
	"de_de": lingua.German,
	"it_it": lingua.Italian,
	"pt_pt": lingua.Portuguese,
	"zh_cn": lingua.Chinese,
	"ja_jp": lingua.Japanese,
	"ko_kr": lingua.Korean,
	"ar_sa": lingua.Arabic,
	"hi_in": lingua.Hindi,
	"pl_pl": lingua.Polish,
	"nl_nl": lingua.Dutch,
	"sv_se": lingua.Swedish,
	"no_no": lingua.Bokmal,
	"da_dk": lingua.Danish,
	"fi_fi": lingua.Finnish,
	"cs_cz": lingua.Czech,
	"hu_hu": lingua.Hungarian,
	"ro_ro": lingua.Romanian,
	"bg_bg": lingua.Bulgarian,
	"el_gr": lingua.Greek,
	"tr_tr": lingua.Turkish,
	"he_il": lingua.Hebrew,
	"th_th": lingua.Thai,
	"vi_vn": lingua.Vietnamese,
}

// LinguaDetector is a statistical Detector backed by lingua-go. It is more
// accurate than ScriptDetector for languages sharing a script (Ukrainian vs
// Russian, English vs German) but needs its models loaded in memory.
type LinguaDetector struct {
	detector lingua.LanguageDetector
	codes    map[lingua.Language]string
}

// NewLinguaDetector builds a detector restricted to the given language codes.
// An empty list means every language the core knows about.
func NewLinguaDetector(codes ...string) (*LinguaDetector, error) {
	if len(codes) == 0 {
		for _, l := range languages {
			codes = append(codes, l.code)
		}
	}

	d := &LinguaDetector{codes: make(map[lingua.Language]string, len(codes))}
	selected := make([]lingua.Language, 0, len(codes))
	for _, code := range codes {
		code = strings.ToLower(code)
		lang, ok := linguaLanguages[code]
		if !ok {
			return nil, fmt.Errorf("lingua: unsupported language %q", code)
		}
		if _, dup := d.codes[lang]; dup {
			continue
		}
		d.codes[lang] = code
		selected = append(selected, lang)
	}
	if len(selected) < 2 {
		return nil, fmt.Errorf("lingua: need at least two languages, got %d", len(selected))
	}

	d.detector = lingua.NewLanguageDetectorBuilder().
		FromLanguages(selected...).
		WithMinimumRelativeDistance(0.1).
		Build()
	return d, nil
}

// Detect implements Detector.
func (d *LinguaDetector) Detect(text string) Language {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < MinDetectableLength {
		return Unknown
	}

	lang, ok := d.detector.DetectLanguageOf(text)
	if !ok {
		return Unknown
	}
	return LanguageOf(d.codes[lang])
}

var _ Detector = (*LinguaDetector)(nil)
