package mailer

// Service is the out-of-band delivery channel for verification and
// reset tokens. Dispatch is best-effort: the account service logs
// failures and never rolls back on them.
type Service interface {
	SendVerificationEmail(toEmail, toName, verifyURL, token string) error
	SendPasswordResetEmail(toEmail, toName, resetURL, token string) error
}
