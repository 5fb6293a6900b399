package translate

import "sort"

// languageCodes maps the display names clients pick from to the
// gateway's language-pair codes.
var languageCodes = map[string]string{
	"English":   "en-IN",
	"Hindi":     "hi-IN",
	"Bengali":   "bn-IN",
	"Tamil":     "ta-IN",
	"Telugu":    "te-IN",
	"Gujarati":  "gu-IN",
	"Kannada":   "kn-IN",
	"Malayalam": "ml-IN",
	"Marathi":   "mr-IN",
	"Punjabi":   "pa-IN",
	"Odia":      "or-IN",
	"Assamese":  "as-IN",
	"Bodo":      "brx-IN",
	"Dogri":     "doi-IN",
	"Kashmiri":  "ks-IN",
	"Konkani":   "gom-IN",
	"Maithili":  "mai-IN",
	"Manipuri":  "mni-IN",
	"Nepali":    "ne-IN",
	"Sanskrit":  "sa-IN",
	"Santali":   "sat-IN",
	"Sindhi":    "sd-IN",
	"Urdu":      "ur-IN",
}

func IsSupported(language string) bool {
	_, ok := languageCodes[language]
	return ok
}

func LanguageCode(language string) string {
	return languageCodes[language]
}

func SupportedLanguages() []string {
	out := make([]string, 0, len(languageCodes))
	for name := range languageCodes {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
