// Package analytics derives sentiment, readability and word statistics from
// video descriptions. All functions are pure.
package analytics

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/hszk-dev/tubelytics/internal/domain/model"
)

// sentimentThreshold is the share of scored words one side needs to win.
const sentimentThreshold = 0.7

var happyWords = map[string]struct{}{
	"happy": {}, "joy": {}, "joyful": {}, "love": {}, "great": {}, "awesome": {},
	"amazing": {}, "fun": {}, "best": {}, "excited": {}, "wonderful": {}, "glad": {},
	"good": {}, "beautiful": {}, "enjoy": {}, "delight": {}, "smile": {}, "laugh": {},
	":-)": {}, ":)": {}, ":d": {}, "😀": {}, "😊": {}, "😂": {},
}

var sadWords = map[string]struct{}{
	"sad": {}, "bad": {}, "angry": {}, "hate": {}, "terrible": {}, "awful": {},
	"worst": {}, "cry": {}, "upset": {}, "disappointed": {}, "depressed": {}, "boring": {},
	"horrible": {}, "pain": {}, "unhappy": {}, "tragic": {}, "fear": {}, "lonely": {},
	":-(": {}, ":(": {}, "😢": {}, "😭": {}, "😞": {}, "😠": {},
}

// Sentiment classifies the combined descriptions as happy, sad or neutral.
func Sentiment(descriptions []string) model.Sentiment {
	var happy, sad int
	for _, d := range descriptions {
		for _, tok := range strings.Fields(strings.ToLower(d)) {
			word := strings.TrimFunc(tok, func(r rune) bool {
				return unicode.IsPunct(r) && r != ')' && r != '(' && r != ':'
			})
			if _, ok := happyWords[word]; ok {
				happy++
			} else if _, ok := sadWords[word]; ok {
				sad++
			}
		}
	}

	total := happy + sad
	switch {
	case total == 0:
		return model.SentimentNeutral
	case float64(happy)/float64(total) >= sentimentThreshold:
		return model.SentimentHappy
	case float64(sad)/float64(total) >= sentimentThreshold:
		return model.SentimentSad
	default:
		return model.SentimentNeutral
	}
}

// Readability returns the Flesch reading ease and Flesch-Kincaid grade level of text.
// Empty text scores zero on both.
func Readability(text string) (ease, grade float64) {
	words := wordsOf(text)
	if len(words) == 0 {
		return 0, 0
	}

	sentences := countSentences(text)
	syllables := 0
	for _, w := range words {
		syllables += countSyllables(w)
	}

	wps := float64(len(words)) / float64(sentences)
	spw := float64(syllables) / float64(len(words))

	ease = 206.835 - 1.015*wps - 84.6*spw
	grade = 0.39*wps + 11.8*spw - 15.59
	return round2(ease), round2(grade)
}

// WordStats counts word occurrences across texts, most frequent first,
// ties broken alphabetically.
func WordStats(texts []string) []model.WordCount {
	counts := make(map[string]int)
	for _, t := range texts {
		for _, w := range wordsOf(t) {
			counts[w]++
		}
	}

	stats := make([]model.WordCount, 0, len(counts))
	for w, c := range counts {
		stats = append(stats, model.WordCount{Word: w, Count: c})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].Word < stats[j].Word
	})
	return stats
}

// Analyzer enriches fresh result sets before they are cached.
type Analyzer struct{}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Enrich sets per-video readability on videos in place and returns the
// aggregate analysis for the whole result set.
func (a *Analyzer) Enrich(videos []model.Video) model.Analysis {
	descriptions := make([]string, 0, len(videos))
	var easeSum, gradeSum float64
	for i := range videos {
		ease, grade := Readability(videos[i].Description)
		videos[i].ReadingEase = ease
		videos[i].GradeLevel = grade
		easeSum += ease
		gradeSum += grade
		descriptions = append(descriptions, videos[i].Description)
	}

	analysis := model.Analysis{Sentiment: Sentiment(descriptions)}
	if n := len(videos); n > 0 {
		analysis.ReadingEase = round2(easeSum / float64(n))
		analysis.GradeLevel = round2(gradeSum / float64(n))
	}
	return analysis
}

func wordsOf(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	})
}

func countSentences(text string) int {
	n := 0
	inTerminator := false
	for _, r := range text {
		if r == '.' || r == '!' || r == '?' {
			if !inTerminator {
				n++
			}
			inTerminator = true
			continue
		}
		if !unicode.IsSpace(r) {
			inTerminator = false
		}
	}
	trimmed := strings.TrimSpace(text)
	if trimmed != "" && !strings.ContainsAny(trimmed[len(trimmed)-1:], ".!?") {
		n++
	}
	if n == 0 {
		n = 1
	}
	return n
}

func countSyllables(word string) int {
	word = strings.Trim(word, "'")
	if word == "" {
		return 0
	}

	n := 0
	prevVowel := false
	for _, r := range word {
		v := isVowel(r)
		if v && !prevVowel {
			n++
		}
		prevVowel = v
	}
	if strings.HasSuffix(word, "e") && !strings.HasSuffix(word, "le") && n > 1 {
		n--
	}
	if n == 0 {
		n = 1
	}
	return n
}

func isVowel(r rune) bool {
	switch r {
	case 'a', 'e', 'i', 'o', 'u', 'y':
		return true
	}
	return false
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
