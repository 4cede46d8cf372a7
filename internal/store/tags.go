package store

import (
	"net/url"
	"strings"
)

func TitleLowerCase(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

func TagURI(title string) string {
	return "/tags/" + url.PathEscape(strings.TrimSpace(title))
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// prefixPattern builds a LIKE pattern matching titles that start with prefix.
func prefixPattern(prefix string) string {
	return likeEscaper.Replace(TitleLowerCase(prefix)) + "%"
}
