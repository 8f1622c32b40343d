package pipeline

import (
	"fmt"
	"strings"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"

	"scribe/internal/models"
)

// Built once at startup; english.NewSentenceTokenizer only fails if the
// embedded training data cannot be decoded.
var sentenceTokenizer = mustSentenceTokenizer()

func mustSentenceTokenizer() *sentences.DefaultSentenceTokenizer {
	t, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		panic(fmt.Sprintf("load english sentence tokenizer: %v", err))
	}
	return t
}

func outlinePrompt(data models.JobData) string {
	category := data.Category
	if category == "" {
		category = "General"
	}
	return fmt.Sprintf(`Create a detailed outline for an article about %s.
Category: %s
Keywords: %s

The outline should include:
1. Introduction
2. 3-4 main sections
3. Conclusion

Return one heading per line, with no extra commentary.`,
		data.Title, category, strings.Join(data.Keywords, ", "))
}

func firstHalfPrompt(data models.JobData, outline []string) string {
	return fmt.Sprintf(`Write the first half of an article titled %q for readers interested in %s.

Follow this outline, including concrete information and practical advice:

%s`, data.Title, data.Keywords[0], strings.Join(outline, "\n"))
}

func secondHalfPrompt(data models.JobData, outline []string, firstHalfExcerpt string) string {
	return fmt.Sprintf(`Write the second half of the article titled %q, continuing from the first half.
The first half begins:

%s...

Follow this outline so the second half connects naturally with the first:

%s`, data.Title, firstHalfExcerpt, strings.Join(outline, "\n"))
}

func descriptionPrompt(data models.JobData, contentExcerpt string) string {
	return fmt.Sprintf(`Write a one-paragraph description (at most two sentences) for an article titled %q.
The article begins:

%s`, data.Title, contentExcerpt)
}

// fallbackDescription derives a summary mechanically from the request when
// the dedicated generation call fails.
func fallbackDescription(data models.JobData) string {
	return fmt.Sprintf("An article about %s. Covers %s.", data.Title, strings.Join(data.Keywords, ", "))
}

// parseOutline turns generated outline text into a heading list, one per
// non-empty line.
func parseOutline(text string) []string {
	var outline []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			outline = append(outline, line)
		}
	}
	return outline
}

// excerpt cuts text down to at most maxLen bytes on sentence boundaries,
// so the continuity excerpt handed to the second-half prompt never ends
// mid-sentence.
func excerpt(text string, maxLen int) string {
	text = strings.TrimSpace(text)
	if len(text) <= maxLen {
		return text
	}

	var b strings.Builder
	for _, s := range sentenceTokenizer.Tokenize(text) {
		st := strings.TrimSpace(s.Text)
		if st == "" {
			continue
		}
		if b.Len()+len(st)+1 > maxLen {
			break
		}
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(st)
	}
	if b.Len() == 0 {
		// First sentence alone exceeds the cap; fall back to a hard cut.
		return text[:maxLen]
	}
	return b.String()
}
