// Package naming derives identifiers from schema names, property names,
// enum literals and path templates.
package naming

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonAlnum = regexp.MustCompile(`[^A-Za-z0-9]+`)

// Casers carry state, so each call gets its own.
func title(s string) string { return cases.Title(language.Und, cases.NoLower).String(s) }
func upper(s string) string { return cases.Upper(language.Und).String(s) }
func lower(s string) string { return cases.Lower(language.Und).String(s) }

// FoldAccents converts accented characters to their base forms.
func FoldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Words splits s on non-alphanumeric runs and camel-case boundaries.
// "XMLHttpRequest" yields XML, Http, Request.
func Words(s string) []string {
	s = FoldAccents(strings.TrimSpace(s))
	var out []string
	for _, part := range nonAlnum.Split(s, -1) {
		if part == "" {
			continue
		}
		out = append(out, splitCamel(part)...)
	}
	return out
}

func splitCamel(s string) []string {
	var parts []string
	var cur strings.Builder
	rs := []rune(s)
	for i, r := range rs {
		boundary := false
		if i > 0 && isUpper(r) {
			if !isUpper(rs[i-1]) {
				boundary = true
			} else if i+1 < len(rs) && isLower(rs[i+1]) {
				boundary = true
			}
		}
		if boundary && cur.Len() > 0 {
			parts = append(parts, cur.String())
			cur.Reset()
		}
		cur.WriteRune(r)
	}
	if cur.Len() > 0 {
		parts = append(parts, cur.String())
	}
	return parts
}

func isUpper(r rune) bool { return r >= 'A' && r <= 'Z' }
func isLower(r rune) bool { return r >= 'a' && r <= 'z' }

// Pascal joins the words of s with each word's first letter upper-cased.
// The rest of every word is kept, so "petDTO" becomes "PetDTO".
func Pascal(s string) string {
	var b strings.Builder
	for _, w := range Words(s) {
		b.WriteString(title(w))
	}
	return b.String()
}

// Camel is Pascal with the first word lower-cased. A result starting with a
// digit gets a leading underscore; an empty result becomes "value".
func Camel(s string) string {
	words := Words(s)
	if len(words) == 0 {
		return "value"
	}
	var b strings.Builder
	b.WriteString(lower(words[0]))
	for _, w := range words[1:] {
		b.WriteString(title(w))
	}
	return digitSafe(b.String())
}

// EnumMember derives a constant name for an enum literal.
func EnumMember(v any) string {
	switch lit := v.(type) {
	case nil:
		return "NULL"
	case string:
		if lit == "" {
			return "EMPTY"
		}
		return enumWords(lit)
	default:
		return enumWords(fmt.Sprint(lit))
	}
}

func enumWords(s string) string {
	words := Words(s)
	if len(words) == 0 {
		return "VALUE"
	}
	for i, w := range words {
		words[i] = upper(w)
	}
	return digitSafe(strings.Join(words, "_"))
}

func digitSafe(s string) string {
	if s != "" && s[0] >= '0' && s[0] <= '9' {
		return "_" + s
	}
	return s
}

// EnumMembers names every literal of an enum in order. Clashing names get
// "_2", "_3", ... suffixes.
func EnumMembers(values []any) []string {
	bases := make([]string, len(values))
	for i, v := range values {
		bases[i] = EnumMember(v)
	}
	return dedupe(bases)
}

// FieldIdentifiers camelCases property names in order, suffixing clashes
// like EnumMembers: "foo_bar" and "fooBar" become "fooBar" and "fooBar_2".
func FieldIdentifiers(names []string) []string {
	bases := make([]string, len(names))
	for i, n := range names {
		bases[i] = Camel(n)
	}
	return dedupe(bases)
}

func dedupe(bases []string) []string {
	used := make(map[string]int, len(bases))
	out := make([]string, 0, len(bases))
	for _, base := range bases {
		name := base
		for n := used[base]; n > 0; n++ {
			candidate := fmt.Sprintf("%s_%d", base, n+1)
			if _, taken := used[candidate]; !taken {
				name = candidate
				break
			}
		}
		used[base]++
		if name != base {
			used[name] = 1
		}
		out = append(out, name)
	}
	return out
}

// OperationID synthesizes an identifier from an HTTP method and a path
// template: the lower-case method, then every literal segment title-cased,
// then By<Param> for every path parameter in order.
// OperationID("get", "/pets/{petId}/toys") == "getPetsToysByPetId".
func OperationID(method, path string) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(method))
	var params []string
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			continue
		}
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			params = append(params, strings.Trim(seg, "{}"))
			continue
		}
		b.WriteString(Pascal(seg))
	}
	for _, p := range params {
		b.WriteString("By")
		b.WriteString(Pascal(p))
	}
	return b.String()
}
