package mailer

import (
	"fmt"

	"github.com/craftbazaar/accounts/pkg/logger"
)

type DevMailer struct{}

func NewDevMailer() *DevMailer {
	return &DevMailer{}
}

func (d *DevMailer) SendVerificationEmail(toEmail, toName, verifyURL, token string) error {
	logger.Info("📧 [DEV MAIL] Verification Email",
		"to", toEmail,
		"name", toName,
		"verify_url", verifyURL,
		"token", token,
	)

	fmt.Printf("\n"+
		"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n"+
		"📧 VERIFICATION EMAIL (DEV MODE)\n"+
		"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n"+
		"To: %s (%s)\n"+
		"Subject: Verify your CraftBazaar account\n"+
		"\n"+
		"Verification URL: %s\n"+
		"Token: %s\n"+
		"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n",
		toEmail, toName, verifyURL, token)

	return nil
}

func (d *DevMailer) SendPasswordResetEmail(toEmail, toName, resetURL, token string) error {
	logger.Info("📧 [DEV MAIL] Password Reset Email",
		"to", toEmail,
		"name", toName,
		"reset_url", resetURL,
		"token", token,
	)

	fmt.Printf("\n"+
		"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n"+
		"📧 PASSWORD RESET EMAIL (DEV MODE)\n"+
		"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n"+
		"To: %s (%s)\n"+
		"Subject: Reset your CraftBazaar password\n"+
		"\n"+
		"Reset URL: %s\n"+
		"Token: %s\n"+
		"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n",
		toEmail, toName, resetURL, token)

	return nil
}
