package middleware

import (
	"context"
	"net/http"

	"golang.org/x/text/language"
)

type localeKey string

const localeCtxKey localeKey = "locale"

var supportedLocales = language.NewMatcher([]language.Tag{
	language.English, // default
	language.Spanish,
	language.Japanese,
	language.Korean,
})

// Locale negotiates the request locale from Accept-Language (or an explicit
// X-Locale header) and stores its base language in the context. The locale is
// forwarded to the inference provider as a prompt-processing hint.
func Locale(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("X-Locale")
		if header == "" {
			header = r.Header.Get("Accept-Language")
		}
		tags, _, err := language.ParseAcceptLanguage(header)
		tag := language.English
		if err == nil && len(tags) > 0 {
			tag, _, _ = supportedLocales.Match(tags...)
		}
		base, _ := tag.Base()
		ctx := context.WithValue(r.Context(), localeCtxKey, base.String())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LocaleFromContext returns the negotiated locale, defaulting to "en".
func LocaleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(localeCtxKey).(string); ok && v != "" {
		return v
	}
	return "en"
}
