package models

// Photo represents a photo in the user's library as returned by the server.
// Only the fields the sync core cares about are mapped; the server sends more.
type Photo struct {
	ID              string `json:"id"`
	Filename        string `json:"filename"`
	AnalysisPending bool   `json:"analysis_pending"`
	Analyzing       bool   `json:"analyzing"`
}

// Transient reports whether the photo is still being worked on server-side.
func (p Photo) Transient() bool {
	return p.AnalysisPending || p.Analyzing
}

// AnyTransient reports whether any photo in the collection is pending or
// analyzing. The refetch scheduler uses this as its collection predicate.
func AnyTransient(photos []Photo) bool {
	for _, p := range photos {
		if p.Transient() {
			return true
		}
	}
	return false
}

// UploadResponse is the body returned by POST /photos on success.
type UploadResponse struct {
	Photo   Photo  `json:"photo"`
	Message string `json:"message"`
}

// AskAnswer is the body returned by POST /memory/ask.
type AskAnswer struct {
	Answer         string `json:"answer"`
	ConversationID string `json:"conversation_id"`
	Model          string `json:"model"`
	ContextItems   int    `json:"context_items"`
}
