package account

import (
	"fmt"
	"time"

	"github.com/go-storefront-auth/internal/infrastructure/smtp"
)

const otpBody = `Hello,

Your OTP for verification is: %s

This OTP is valid for %d minutes.

If you did not request this, please ignore this email.

Regards,
SHOPVERSE Team
`

func otpMessage(to, code string, ttl time.Duration) smtp.Message {
	return smtp.Message{
		To:      to,
		Subject: "OTP for Verification",
		Body:    fmt.Sprintf(otpBody, code, int(ttl.Minutes())),
	}
}
