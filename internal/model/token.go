package model

// TokenManager issues and validates actor access tokens.
type TokenManager interface {
	GenerateAccessToken(actorID string) (string, error)
	ParseAccessToken(token string) (string, error)
}
