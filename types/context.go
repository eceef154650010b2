package types

// UserLevel is the caller's declared proficiency with the topic.
type UserLevel string

const (
	LevelBeginner     UserLevel = "beginner"
	LevelIntermediate UserLevel = "intermediate"
	LevelAdvanced     UserLevel = "advanced"
)

// LearningStyle expresses which kinds of sources the caller absorbs best.
type LearningStyle string

const (
	StyleVisual         LearningStyle = "visual"
	StyleVideo          LearningStyle = "video"
	StyleInteractive    LearningStyle = "interactive"
	StyleTextual        LearningStyle = "textual"
	StyleConversational LearningStyle = "conversational"
)

// TimePreference expresses how much recency matters to the caller.
type TimePreference string

const (
	TimeAny    TimePreference = "any"
	TimeRecent TimePreference = "recent"
)

// ResearchContext carries caller preferences through the whole pipeline.
// The zero value is a valid "no preferences" context.
type ResearchContext struct {
	UserID                string         `json:"user_id,omitempty"`
	UserLevel             UserLevel      `json:"user_level,omitempty"`
	LearningStyle         LearningStyle  `json:"learning_style,omitempty"`
	Keywords              []string       `json:"keywords,omitempty"`
	ExcludeKeywords       []string       `json:"exclude_keywords,omitempty"`
	PreferredContentTypes []string       `json:"preferred_content_types,omitempty"`
	TimePreference        TimePreference `json:"time_preference,omitempty"`
}
