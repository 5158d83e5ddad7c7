package crawl

import "strings"

// Token budgets for the fuzzy index. Author gets the smallest share,
// description the largest; the combined list is hard-capped.
const (
	fuzzyAuthorWords      = 4
	fuzzyTitleWords       = 16
	fuzzyDescriptionWords = 40
	fuzzyNGramBudget      = 8
	fuzzyNGramSize        = 4
	fuzzyTokenCap         = 64
)

const fuzzyPunctuation = `.,!?;:"'()[]{}<>`

// FuzzyTokens derives the bounded token string used for approximate text
// search: normalized words from author, title and description in that order,
// followed by character n-grams over the description-scale text. An empty
// result means no qualifying source text existed; callers must omit the
// field entirely rather than store an empty string.
func FuzzyTokens(title, description, author string) string {
	authorWords := fieldWords(author, fuzzyAuthorWords)
	titleWords := fieldWords(title, fuzzyTitleWords)
	descWords := fieldWords(description, fuzzyDescriptionWords)
	grams := ngrams(strings.Join(descWords, " "), fuzzyNGramSize, fuzzyNGramBudget)

	tokens := make([]string, 0, len(authorWords)+len(titleWords)+len(descWords)+len(grams))
	tokens = append(tokens, authorWords...)
	tokens = append(tokens, titleWords...)
	tokens = append(tokens, descWords...)
	tokens = append(tokens, grams...)
	if len(tokens) > fuzzyTokenCap {
		tokens = tokens[:fuzzyTokenCap]
	}
	return strings.Join(tokens, " ")
}

// fieldWords splits on whitespace, drops words of length <= 2, truncates to
// the field budget, then lowercases and strips the punctuation set.
func fieldWords(text string, budget int) []string {
	fields := strings.Fields(text)
	words := make([]string, 0, budget)
	for _, w := range fields {
		if len(w) <= 2 {
			continue
		}
		words = append(words, strings.Trim(strings.ToLower(w), fuzzyPunctuation))
		if len(words) == budget {
			break
		}
	}
	return words
}

// ngrams slides a fixed-size rune window over text, removes spaces from each
// window and keeps those longer than 2 characters, up to the budget.
func ngrams(text string, size, budget int) []string {
	runes := []rune(text)
	if len(runes) < size {
		return nil
	}
	grams := make([]string, 0, budget)
	for i := 0; i+size <= len(runes); i++ {
		g := strings.ReplaceAll(strings.TrimSpace(string(runes[i:i+size])), " ", "")
		if len(g) <= 2 {
			continue
		}
		grams = append(grams, g)
		if len(grams) == budget {
			break
		}
	}
	return grams
}
