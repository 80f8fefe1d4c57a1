package classifier

import (
	"regexp"
	"sort"
	"strings"

	ahocorasick "github.com/cloudflare/ahocorasick"
	"golang.org/x/text/unicode/norm"

	"github.com/watchwise/watchwise/internal/domain"
)

// Confidence constants for the local strategy. Sentiment confidence is
// monotonic in hit margin and bounded to [0.45, 0.95]; topic confidence to
// [0.4, 0.95].
const (
	sentimentNoHitConfidence = 0.45
	sentimentTieConfidence   = 0.5
	sentimentBaseConfidence  = 0.6
	sentimentMarginStep      = 0.05
	sentimentMaxConfidence   = 0.95

	topicNoHitConfidence = 0.4
	topicBaseConfidence  = 0.55
	topicHitStep         = 0.1
	topicMaxConfidence   = 0.95

	altBaseConfidence = 0.45
	altHitStep        = 0.08
	altMaxConfidence  = 0.8
	maxAlternatives   = 3
)

var normalizeStrip = regexp.MustCompile(`[#@]`)
var normalizeSpaces = regexp.MustCompile(`\s+`)

// Local is the deterministic keyword classifier. It is the fallback for
// every remote failure and the only strategy when no remote credential is
// configured. All matching runs through Aho-Corasick automatons built once
// at construction.
type Local struct {
	positive *ahocorasick.Matcher
	negative *ahocorasick.Matcher

	topics     *ahocorasick.Matcher
	kwToTopic  []int // keyword index -> topicRules index
	topicNames []string
}

// NewLocal builds the lexicon automatons.
func NewLocal() *Local {
	l := &Local{
		positive: ahocorasick.NewStringMatcher(positiveLexicon),
		negative: ahocorasick.NewStringMatcher(negativeLexicon),
	}

	var keywords []string
	for ti, rule := range topicRules {
		l.topicNames = append(l.topicNames, rule.Name)
		for _, kw := range rule.Keywords {
			keywords = append(keywords, kw)
			l.kwToTopic = append(l.kwToTopic, ti)
		}
	}
	l.topics = ahocorasick.NewStringMatcher(keywords)

	return l
}

// Normalize lowercases, strips #/@ markers, and collapses whitespace. Text
// is NFKC-normalized first so fullwidth and composed forms match the
// lexicon.
func Normalize(text string) string {
	text = norm.NFKC.String(text)
	text = strings.ToLower(text)
	text = normalizeStrip.ReplaceAllString(text, " ")
	text = normalizeSpaces.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Sentiment scores the normalized text against the polarity lexicons.
// Ties and zero hits resolve to neutral; otherwise the majority polarity
// wins with confidence min(0.95, 0.6 + 0.05*margin).
func (l *Local) Sentiment(text string) SentimentResult {
	normalized := Normalize(text)
	positiveHits := len(l.positive.Match([]byte(normalized)))
	negativeHits := len(l.negative.Match([]byte(normalized)))

	switch {
	case positiveHits == 0 && negativeHits == 0:
		return SentimentResult{
			Sentiment:  domain.SentimentNeutral,
			Confidence: sentimentNoHitConfidence,
			Method:     domain.MethodLocal,
		}
	case positiveHits == negativeHits:
		return SentimentResult{
			Sentiment:  domain.SentimentNeutral,
			Confidence: sentimentTieConfidence,
			Method:     domain.MethodLocal,
		}
	}

	sentiment := domain.SentimentPositive
	margin := positiveHits - negativeHits
	if negativeHits > positiveHits {
		sentiment = domain.SentimentNegative
		margin = negativeHits - positiveHits
	}

	confidence := sentimentBaseConfidence + sentimentMarginStep*float64(margin)
	if confidence > sentimentMaxConfidence {
		confidence = sentimentMaxConfidence
	}
	return SentimentResult{Sentiment: sentiment, Confidence: confidence, Method: domain.MethodLocal}
}

// Topic scores every topic by keyword hit count in one automaton pass and
// picks the max, breaking ties by table order. Runner-up topics with
// positive hit counts become alternatives, most-confident first.
func (l *Local) Topic(text string) TopicResult {
	normalized := Normalize(text)

	hits := make([]int, len(topicRules))
	for _, kwIdx := range l.topics.Match([]byte(normalized)) {
		hits[l.kwToTopic[kwIdx]]++
	}

	best := -1
	for ti, count := range hits {
		if count > 0 && (best == -1 || count > hits[best]) {
			best = ti
		}
	}

	if best == -1 {
		return TopicResult{
			Topic:      TopicOther,
			Confidence: topicNoHitConfidence,
			Method:     domain.MethodLocal,
		}
	}

	confidence := topicBaseConfidence + topicHitStep*float64(hits[best])
	if confidence > topicMaxConfidence {
		confidence = topicMaxConfidence
	}

	return TopicResult{
		Topic:        l.topicNames[best],
		Confidence:   confidence,
		Alternatives: l.alternatives(hits, best),
		Method:       domain.MethodLocal,
	}
}

// alternatives collects up to three runner-up topics ordered by hit count
// (table order on ties).
func (l *Local) alternatives(hits []int, best int) []domain.TopicAlternative {
	type scored struct {
		topic int
		hits  int
	}
	var runners []scored
	for ti, count := range hits {
		if ti != best && count > 0 {
			runners = append(runners, scored{topic: ti, hits: count})
		}
	}
	// Stable sort keeps the declared priority on equal hits.
	sort.SliceStable(runners, func(i, j int) bool {
		return runners[i].hits > runners[j].hits
	})
	if len(runners) > maxAlternatives {
		runners = runners[:maxAlternatives]
	}

	alts := make([]domain.TopicAlternative, 0, len(runners))
	for _, r := range runners {
		confidence := altBaseConfidence + altHitStep*float64(r.hits)
		if confidence > altMaxConfidence {
			confidence = altMaxConfidence
		}
		alts = append(alts, domain.TopicAlternative{
			Topic:      l.topicNames[r.topic],
			Confidence: confidence,
		})
	}
	return alts
}
