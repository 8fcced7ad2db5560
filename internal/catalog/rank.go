package catalog

import (
	"slices"
	"strings"
)

// noiseTokens are qualifiers providers append to titles. They are
// stripped from the end of normalized text so variants of the same
// song compare equal.
var noiseTokens = map[string]struct{}{
	"remaster":   {},
	"remastered": {},
	"live":       {},
	"deluxe":     {},
	"edition":    {},
	"version":    {},
	"mono":       {},
	"stereo":     {},
	"single":     {},
	"explicit":   {},
}

var separatorReplacer = strings.NewReplacer("-", " ", "_", " ", "/", " ")

// Normalize lowercases its fields, drops bracketed segments and
// trailing noise tokens, and collapses separators into spaces.
func Normalize(fields ...string) string {
	var parts []string
	for _, f := range fields {
		f = strings.ToLower(f)
		f = stripBrackets(f)
		f = separatorReplacer.Replace(f)

		words := strings.Fields(f)
		for len(words) > 0 {
			if _, noisy := noiseTokens[words[len(words)-1]]; !noisy {
				break
			}
			words = words[:len(words)-1]
		}
		if len(words) > 0 {
			parts = append(parts, strings.Join(words, " "))
		}
	}
	return strings.Join(parts, " ")
}

func stripBrackets(s string) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch r {
		case '(', '[':
			depth++
		case ')', ']':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

// Rank orders songs by similarity to query, best match first. Equal
// scores keep provider order.
func Rank(query string, songs []Song) []Song {
	normalized := Normalize(query)
	if normalized == "" {
		return songs
	}

	type scored struct {
		song  Song
		score float64
	}
	entries := make([]scored, len(songs))
	for i, song := range songs {
		entries[i] = scored{song: song, score: matchScore(normalized, song)}
	}
	slices.SortStableFunc(entries, func(a, b scored) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		}
		return 0
	})

	out := make([]Song, len(entries))
	for i, e := range entries {
		out[i] = e.song
	}
	return out
}

// matchScore rates a song against an already normalized query. Exact
// title matches beat prefix matches beat fuzzy ones; naming the artist
// in the query earns a small bonus.
func matchScore(query string, song Song) float64 {
	title := Normalize(song.Title)

	var score float64
	switch {
	case title == query:
		score = 1.0
	case strings.HasPrefix(title, query):
		score = 0.9
	default:
		score = similarity(query, title)
	}

	if artist := Normalize(song.Artist); artist != "" && strings.Contains(query, artist) {
		score += 0.05
	}
	return score
}

// similarity maps edit distance into [0, 1], where 1 is identical.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(a, b))/float64(longest)
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
