package question

// Difficulty constants for readability.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Question is one immutable quiz question. AnswerIndex points into Options
// and is never sent to clients while a room is live.
type Question struct {
	Prompt      string   `json:"prompt"`
	Options     []string `json:"options"`
	AnswerIndex int      `json:"answer_index"`
	Explanation string   `json:"explanation,omitempty"`
	Difficulty  string   `json:"difficulty"`
	Category    string   `json:"category"`
	Source      string   `json:"source,omitempty"`
}

// BatchRequest describes one question-generation call for a room session.
type BatchRequest struct {
	GameType    string
	Difficulty  string
	Rounds      int
	Language    string
	Topic       string
	Personality string
	Seed        string
	// SkipCache forces a fresh batch; multiplayer starts always set it so two
	// sessions never replay the same pack.
	SkipCache bool
}

// Batch holds a generated question sequence and metadata.
type Batch struct {
	Questions []Question `json:"questions"`
	Seed      string     `json:"seed"`
	ExpiresAt int64      `json:"expires_at"`
}
