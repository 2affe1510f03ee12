package agent

import (
	"regexp"
	"strings"
	"unicode"
)

var numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// ungroundedClaims returns the sentences of answer that carry numeric
// claims with no antecedent in any tool observation from the run. A
// sentence is flagged when at least one of its numbers appears in none
// of the observations. Sentences without numbers are never flagged;
// deciding whether prose is factual is not worth guessing at.
func ungroundedClaims(answer string, observations []string) []string {
	if len(observations) == 0 {
		observations = nil
	}
	evidence := strings.Join(observations, "\n")

	var flagged []string
	for _, sentence := range splitSentences(answer) {
		numbers := numberPattern.FindAllString(sentence, -1)
		if len(numbers) == 0 {
			continue
		}
		for _, number := range numbers {
			if !strings.Contains(evidence, number) {
				flagged = append(flagged, sentence)
				break
			}
		}
	}
	return flagged
}

// splitSentences cuts on CJK terminators and newlines unconditionally,
// and on ASCII terminators only at a word boundary so decimal points
// survive.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	flush := func() {
		s := strings.TrimSpace(current.String())
		if s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}

	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)
		switch r {
		case '。', '！', '？', '\n':
			flush()
		case '.', '!', '?':
			if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) {
				flush()
			}
		}
	}
	flush()
	return sentences
}
