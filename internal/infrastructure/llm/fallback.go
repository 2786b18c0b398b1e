package llm

import (
	"strings"

	"doubot/internal/filter"
	"doubot/pkg/textnorm"
)

const maxExtractiveRunes = 250

// extractive builds a rule-based summary when no remote provider delivers:
// the act's designation, its opening sentence, up to two fiscally relevant
// sentences and the issuing organ.
type extractive struct {
	keywords []string
}

func newExtractive() *extractive {
	folded := make([]string, len(filter.DefaultKeywords))
	for i, kw := range filter.DefaultKeywords {
		folded[i] = textnorm.Fold(kw)
	}
	return &extractive{keywords: folded}
}

func (e *extractive) name() string { return "extractive" }

func (e *extractive) summarize(req summaryRequest) string {
	sentences := splitSentences(req.Text)

	var parts []string
	if req.Kind != "" {
		parts = append(parts, req.Kind)
	}
	if len(sentences) > 0 {
		parts = append(parts, sentences[0])
	}

	relevant := 0
	for i, sentence := range sentences {
		if i == 0 {
			continue
		}
		if relevant == 2 {
			break
		}
		length := len([]rune(sentence))
		if length <= 20 || length >= 150 {
			continue
		}
		if e.mentionsFiscalTerm(sentence) {
			parts = append(parts, sentence)
			relevant++
		}
	}

	if req.Organ != "" {
		parts = append(parts, "Órgão: "+req.Organ)
	}

	summary := strings.TrimSpace(strings.Join(parts, " "))
	if summary == "" {
		return ""
	}

	if runes := []rune(summary); len(runes) > maxExtractiveRunes {
		clipped := string(runes[:maxExtractiveRunes])
		if i := strings.LastIndex(clipped, " "); i > 0 {
			clipped = clipped[:i]
		}
		summary = strings.TrimSpace(clipped) + "..."
	}
	return summary
}

func (e *extractive) mentionsFiscalTerm(sentence string) bool {
	folded := textnorm.Fold(sentence)
	for _, kw := range e.keywords {
		if strings.Contains(folded, kw) {
			return true
		}
	}
	return false
}
