package common

// Metadata keys (and cookie names) carrying the credentials.
const (
	AccessTokenHeaderName  = "access_token"
	RefreshTokenHeaderName = "refresh_token"
)
