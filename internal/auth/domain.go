package auth

// Account is the credential record of a portal user.
type Account struct {
	Username     string
	PasswordHash string
	Enabled      bool
}
