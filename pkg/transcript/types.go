package transcript

import "time"

// Role tags who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// IsValid reports whether r is a recognised role.
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Mode selects the system prompt template and generation profile for a
// conversation.
type Mode string

const (
	// ModeCasual is a short, warm, conversational profile tuned for voice.
	ModeCasual Mode = "casual"

	// ModeInterview is a formal, structured, one-question-at-a-time profile.
	ModeInterview Mode = "interview"
)

// IsValid reports whether m is a recognised conversation mode.
func (m Mode) IsValid() bool {
	return m == ModeCasual || m == ModeInterview
}

// TurnMetadata carries optional per-turn detail. A voice-originated user turn
// always has IsVoice set.
type TurnMetadata struct {
	IsVoice  bool          `json:"isVoice,omitempty"`
	AudioURL string        `json:"audioUrl,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// Turn is one role-tagged message within a conversation's ordered log.
// Turns are immutable once appended; corrections are modelled as new turns.
type Turn struct {
	Role      Role          `json:"role"`
	Content   string        `json:"content"`
	Timestamp time.Time     `json:"timestamp"`
	Metadata  *TurnMetadata `json:"metadata,omitempty"`
}

// Conversation is an ordered log of turns owned by a single user. Turn order
// is insertion order and is never rewritten.
type Conversation struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	Mode   Mode   `json:"mode"`

	// TTSProvider optionally overrides the process-default TTS backend for
	// voice replies in this conversation. Empty means use the default.
	TTSProvider string `json:"ttsProvider,omitempty"`

	Turns     []Turn    `json:"turns"`
	IsActive  bool      `json:"isActive"`
	StartedAt time.Time `json:"startedAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// User is a minimal account record; conversations require an existing owner.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
