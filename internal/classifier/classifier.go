// Package classifier maps watched-item text to a sentiment and a topic.
// Two interchangeable strategies exist: a remote inference provider and a
// deterministic local lexicon scorer. Remote failures fall back to local for
// that call only; the fallback is an explicit branch tagged on the result,
// never a silent catch.
package classifier

import (
	"context"
	"unicode/utf8"

	"github.com/watchwise/watchwise/internal/domain"
	"github.com/watchwise/watchwise/internal/logging"
)

// SentimentResult is the outcome of sentiment classification.
type SentimentResult struct {
	Sentiment  domain.Sentiment
	Confidence float64
	Method     domain.Method
}

// TopicResult is the outcome of topic classification.
type TopicResult struct {
	Topic        string
	Confidence   float64
	Alternatives []domain.TopicAlternative
	Method       domain.Method
}

// RemoteProvider is the external inference provider contract.
type RemoteProvider interface {
	AnalyzeSentiment(ctx context.Context, text string) (SentimentResult, error)
	AnalyzeTopic(ctx context.Context, text string) (TopicResult, error)
}

// Service orchestrates strategy selection and the default policy for text
// that must not be classified at all.
type Service struct {
	remote       RemoteProvider // nil when no credential is configured
	local        *Local
	logger       logging.Logger
	minTextRunes int
}

// NewService creates the classifier service. remote may be nil.
func NewService(remote RemoteProvider, local *Local, minTextRunes int, logger logging.Logger) *Service {
	return &Service{
		remote:       remote,
		local:        local,
		logger:       logger,
		minTextRunes: minTextRunes,
	}
}

// skipScoring reports whether the text falls under the default policy:
// synthesized placeholders and very short text are never fed to either
// strategy.
func (s *Service) skipScoring(text string) bool {
	return domain.IsPlaceholderTitle(text) || utf8.RuneCountInString(text) < s.minTextRunes
}

// defaultTopic is the topic assigned under the default policy.
func defaultTopic(isShortForm bool) string {
	if isShortForm {
		return TopicEntertainment
	}
	return TopicOther
}

// ClassifySentiment classifies the text's sentiment, preferring the remote
// strategy when configured.
func (s *Service) ClassifySentiment(ctx context.Context, text string) SentimentResult {
	if s.remote != nil {
		result, err := s.remote.AnalyzeSentiment(ctx, text)
		if err == nil {
			return result
		}
		s.logger.Warn("remote sentiment failed, falling back to local",
			logging.Error(err))
	}
	return s.local.Sentiment(text)
}

// ClassifyTopic classifies the text's topic, preferring the remote strategy
// when configured.
func (s *Service) ClassifyTopic(ctx context.Context, text string) TopicResult {
	if s.remote != nil {
		result, err := s.remote.AnalyzeTopic(ctx, text)
		if err == nil {
			return result
		}
		s.logger.Warn("remote topic failed, falling back to local",
			logging.Error(err))
	}
	return s.local.Topic(text)
}

// Classify applies the default policy, then runs both classifications for
// the item text. It never returns an error: failures degrade to the local
// strategy.
func (s *Service) Classify(ctx context.Context, text string, isShortForm bool) (SentimentResult, TopicResult) {
	if s.skipScoring(text) {
		s.logger.Debug("default classification for placeholder or short text",
			logging.String("text", text))
		return SentimentResult{
				Sentiment:  domain.SentimentNeutral,
				Confidence: sentimentTieConfidence,
				Method:     domain.MethodDefault,
			}, TopicResult{
				Topic:      defaultTopic(isShortForm),
				Confidence: sentimentTieConfidence,
				Method:     domain.MethodDefault,
			}
	}
	return s.ClassifySentiment(ctx, text), s.ClassifyTopic(ctx, text)
}
