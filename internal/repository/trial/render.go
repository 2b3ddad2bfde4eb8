package trial

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/kailas-cloud/trialmatch/internal/domain/search/query"
)

// MatchAllQuery selects every document in the index.
const MatchAllQuery = "*"

// RenderQuery renders a weighted query in the RediSearch dialect (DIALECT 2).
//
// Terms are tokenized into words and OR-ed per field, so a document matches
// the required clause when any field contains any word:
//
//	(@brief_title:(a|b)=>{$weight:3} | @conditions:(a|b)=>{$weight:2}) ~(@brief_title:(s)=>{$weight:1.5})
//
// The "~" clause is optional and only raises the score of documents that
// also match an expansion. An empty required clause renders MatchAllQuery
// when the query allows it and "" otherwise.
func RenderQuery(q query.Weighted) string {
	primary := renderClause(q.Primary, q.PrimaryBoosts)
	if primary == "" {
		if q.MatchAll {
			return MatchAllQuery
		}
		return ""
	}
	secondary := renderClause(q.Secondary, q.SecondaryBoosts)
	if secondary == "" {
		return primary
	}
	return primary + " ~" + secondary
}

func renderClause(terms []string, boosts query.Boosts) string {
	words := tokenize(terms)
	if len(words) == 0 || len(boosts) == 0 {
		return ""
	}
	alt := strings.Join(words, "|")

	parts := make([]string, 0, len(boosts))
	for _, b := range boosts {
		parts = append(parts, "@"+string(b.Field)+":("+alt+")=>{$weight:"+formatWeight(b.Weight)+"}")
	}
	return "(" + strings.Join(parts, " | ") + ")"
}

// tokenize splits terms the way the index tokenizer does (anything that is not
// a letter or digit separates words), lowercases, and deduplicates keeping
// first-seen order. Tokens therefore never need escaping.
func tokenize(terms []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, t := range terms {
		for _, w := range strings.FieldsFunc(t, isSeparator) {
			w = strings.ToLower(w)
			if _, dup := seen[w]; dup {
				continue
			}
			seen[w] = struct{}{}
			out = append(out, w)
		}
	}
	return out
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func formatWeight(w float64) string {
	return strconv.FormatFloat(w, 'f', -1, 64)
}
