package middleware

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

type localeContextKey struct{}

// LocaleKey addresses the resolved locale in a request context.
var LocaleKey = localeContextKey{}

// supported lists the locales prompt context is tailored for, in matcher
// preference order.
var supported = []language.Tag{
	language.English,
	language.Indonesian,
}

var matcher = language.NewMatcher(supported)

// I18N resolves the request locale from the X-Locale header, then the
// Accept-Language header, then the default.
func I18N(defaultLocale string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			locale := detectLocale(r, defaultLocale)
			ctx := context.WithValue(r.Context(), LocaleKey, locale)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func detectLocale(r *http.Request, fallback string) string {
	if v := r.Header.Get("X-Locale"); v != "" {
		if tag, err := language.Parse(v); err == nil {
			return matchLocale(tag)
		}
	}
	if accept := r.Header.Get("Accept-Language"); accept != "" {
		if tags, _, err := language.ParseAcceptLanguage(accept); err == nil && len(tags) > 0 {
			_, idx, _ := matcher.Match(tags...)
			return baseLocale(supported[idx])
		}
	}
	if fallback != "" {
		return normalizeLocale(fallback)
	}
	return "en"
}

func matchLocale(tag language.Tag) string {
	_, idx, _ := matcher.Match(tag)
	return baseLocale(supported[idx])
}

func baseLocale(tag language.Tag) string {
	base, _ := tag.Base()
	return base.String()
}

func normalizeLocale(locale string) string {
	if tag, err := language.Parse(strings.TrimSpace(locale)); err == nil {
		return matchLocale(tag)
	}
	return "en"
}

// LocaleFromContext returns the locale stored by I18N, defaulting to
// English.
func LocaleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(LocaleKey).(string); ok {
		return v
	}
	return "en"
}
