package domain

// AuthResult is produced once per successful sign-in and consumed immediately
// to unlock gameplay.
type AuthResult struct {
	Address   string `json:"address"`
	Message   string `json:"message"`
	Signature string `json:"signature"`
}
