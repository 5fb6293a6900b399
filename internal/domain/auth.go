package domain

// AuthRequest is the one typed shape every authenticate payload is
// normalized into before it reaches the session registry, whether the
// client sent a bare handle string, a structured object, or a token.
type AuthRequest struct {
	Handle            string `json:"handle"`
	Password          string `json:"password,omitempty"`
	PreferredLanguage string `json:"preferredLanguage,omitempty"`
	Token             string `json:"token,omitempty"`
}
