package registry

import (
	"strings"
	"unicode"

	pluralizer "github.com/gertd/go-pluralize"
)

var plural = pluralizer.NewClient()

// TableName derives the conventional table name from an unqualified class
// name: snake_case the studly words and pluralize the last one, with the
// usual English irregulars ("Status" -> "statuses", "Person" -> "people").
func TableName(className string) string {
	words := splitStudly(className)
	if len(words) == 0 {
		return ""
	}
	words[len(words)-1] = plural.Plural(words[len(words)-1])
	return strings.Join(words, "_")
}

func splitStudly(name string) []string {
	var words []string
	var cur strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) && i > 0 {
			words = append(words, strings.ToLower(cur.String()))
			cur.Reset()
		}
		cur.WriteRune(r)
	}
	if cur.Len() > 0 {
		words = append(words, strings.ToLower(cur.String()))
	}
	return words
}
