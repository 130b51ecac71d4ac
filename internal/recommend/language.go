package recommend

import "strings"

// Language is the display name used in search queries and the market the
// catalog is restricted to.
type Language struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Market string `json:"market"`
}

// DefaultLanguage is used for any code outside the supported set.
var DefaultLanguage = Language{Code: "en", Name: "English", Market: "US"}

var languages = []Language{
	DefaultLanguage,
	{Code: "hi", Name: "Hindi", Market: "IN"},
	{Code: "ta", Name: "Tamil", Market: "IN"},
	{Code: "te", Name: "Telugu", Market: "IN"},
}

// ResolveLanguage maps a language code to its metadata. Unknown codes resolve to
// English/US.
func ResolveLanguage(code string) Language {
	code = strings.ToLower(strings.TrimSpace(code))
	for _, l := range languages {
		if l.Code == code {
			return l
		}
	}
	return DefaultLanguage
}

// Languages lists the supported languages in display order.
func Languages() []Language {
	out := make([]Language, len(languages))
	copy(out, languages)
	return out
}
