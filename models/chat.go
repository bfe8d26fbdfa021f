package models

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type Verbosity string

const (
	VerbosityBalanced Verbosity = "balanced"
	VerbosityConcise  Verbosity = "concise"
	VerbosityDetailed Verbosity = "detailed"
)

type ResponseFormat string

const (
	ResponseFormatPlaintext ResponseFormat = "plaintext"
	ResponseFormatMarkdown  ResponseFormat = "markdown"
)

// ChatPostRequest is the body of POST /api/chat.
//
// Optional fields are pointers so that a zero value set by the caller, such as
// generate_related_questions=0, is still sent.
type ChatPostRequest struct {
	Messages                 []ChatMessage  `json:"messages"`
	Stream                   *bool          `json:"stream,omitempty"`
	Verbosity                Verbosity      `json:"verbosity,omitempty"`
	ResponseFormat           ResponseFormat `json:"response_format,omitempty"`
	InlineCitations          *bool          `json:"inline_citations,omitempty"`
	GenerateRelatedQuestions *int           `json:"generate_related_questions,omitempty"`
}
