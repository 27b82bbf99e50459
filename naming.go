package kindred

import (
	"strings"
	"unicode"
)

// storedName derives a property name from a Go field name by lower-casing its
// leading word. The rest of the name is kept verbatim.
//
//   - "Name"       -> "name"
//   - "ID"         -> "id"
//   - "UserID"     -> "userID"
//   - "HTTPServer" -> "httpServer"
//   - "IDs"        -> "ids"
//   - "Foo_Bar"    -> "foo_Bar"
func storedName(field string) string {
	runes := []rune(field)
	if len(runes) == 0 {
		return field
	}
	end := 1
	for end < len(runes) && !isSeparator(runes[end]) && !wordBoundary(runes, end) {
		end++
	}
	return strings.ToLower(string(runes[:end])) + string(runes[end:])
}

func isSeparator(r rune) bool {
	return r == '_' || r == '-' || r == ' '
}

// wordBoundary reports whether a new word starts at position i.
func wordBoundary(runes []rune, i int) bool {
	r, prev := runes[i], runes[i-1]
	isUpper := unicode.IsUpper(r)
	isPrevUpper := unicode.IsUpper(prev)

	// "orderID": split before 'I'
	if isUpper && !isPrevUpper {
		return true
	}

	// "XMLParser": split before 'P', unless the lowercase letter is a lone
	// plural suffix as in "IDs" or "URLsByHost".
	if isUpper && isPrevUpper && i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
		plural := runes[i+1] == 's' && (i+2 == len(runes) || !unicode.IsLower(runes[i+2]))
		return !plural
	}

	return false
}
