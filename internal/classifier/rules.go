package classifier

// Sentiment lexicon for the local strategy. Each hit counts once per word.
var (
	positiveLexicon = []string{
		"amazing", "awesome", "great", "love", "best", "incredible",
		"wonderful", "fantastic", "excellent", "beautiful", "happy",
		"excited", "success", "wins", "calm",
	}
	negativeLexicon = []string{
		"terrible", "awful", "hate", "worst", "horrible", "disgusting",
		"annoying", "stupid", "bad", "sucks", "angry", "sad", "anxious",
		"fear", "panic", "failure",
	}
)

// topicRule binds a topic name to its keyword list.
type topicRule struct {
	Name     string
	Keywords []string
}

// topicRules is the bounded topic set for the local strategy. Slice order is
// the declared tie-break priority: when two topics score equal hit counts,
// the earlier entry wins.
var topicRules = []topicRule{
	{Name: "music", Keywords: []string{
		"music", "song", "album", "artist", "band", "concert", "lyrics",
		"beat", "singer", "guitar",
	}},
	{Name: "food", Keywords: []string{
		"food", "cook", "cooking", "recipe", "kitchen", "chef",
		"restaurant", "meal", "pizza", "burger", "pasta",
	}},
	{Name: "news", Keywords: []string{
		"news", "breaking", "politics", "government", "election",
		"economy", "update", "report",
	}},
	{Name: "entertainment", Keywords: []string{
		"funny", "comedy", "movie", "series", "tv", "celebrity", "gossip",
		"trailer", "interview",
	}},
	{Name: "education", Keywords: []string{
		"tutorial", "learn", "lesson", "explained", "course", "study",
		"guide", "exam", "math", "science",
	}},
	{Name: "lifestyle", Keywords: []string{
		"vlog", "daily", "routine", "travel", "fashion", "beauty", "home",
		"minimal", "wellness",
	}},
	{Name: "gaming", Keywords: []string{
		"game", "gaming", "playthrough", "walkthrough", "livestream",
		"tournament", "speedrun", "esports", "minecraft", "fortnite",
	}},
	{Name: "technology", Keywords: []string{
		"tech", "software", "hardware", "coding", "programming", "ai",
		"robotics", "engineering", "build", "gadget",
	}},
	{Name: "sports", Keywords: []string{
		"sport", "soccer", "football", "basketball", "highlights", "match",
		"game-winning", "athlete", "training",
	}},
}

// TopicOther is assigned when no topic keyword matches.
const TopicOther = "other"

// TopicEntertainment is the default topic for short-form items that skip
// classification.
const TopicEntertainment = "entertainment"
