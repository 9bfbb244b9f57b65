package models

// Role identifies who authored a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn is one logged conversation entry. Timestamp is always in the
// canonical layout produced by the repository package.
type Turn struct {
	SessionID string `json:"-"`
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// ChatResult is what one orchestrator cycle hands back to the presentation layer.
type ChatResult struct {
	Turns []Turn
	Reply *Turn // nil when the request carried no query
}

// ChatRequest is the payload sent to the chat endpoint.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the reply from the AI chat.
type ChatResponse struct {
	Response  string `json:"response"`
	Timestamp string `json:"timestamp"`
}

type StatusResponse struct {
	AIConfigured bool   `json:"ai_configured"`
	Database     string `json:"database"`
	AssetsLoaded int    `json:"assets_loaded"`
}

type ModelsResponse struct {
	Models []string `json:"models"`
}
