package services

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"time"
)

// VerificationCodeTTL bounds how long an emailed code is accepted.
const VerificationCodeTTL = 5 * time.Minute

const verificationSubject = "Email verification on Pricewatch"

// newVerificationCode returns a random four digit code.
func newVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", n.Int64()+1000), nil
}

func codesEqual(want, got string) bool {
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}

func verificationBody(code string) string {
	return `<html>
  <body style="font-family: Arial, sans-serif; background-color: #f9f9f9; padding: 20px;">
    <div style="max-width: 500px; margin: auto; background-color: #ffffff; border-radius: 8px; padding: 20px;">
      <h2 style="color: #2ecc71;">Pricewatch</h2>
      <p>Hello,</p>
      <p>Thank you for registering on our platform.</p>
      <p>Please confirm your email by entering the following verification code:</p>
      <p style="font-size: 24px; font-weight: bold; color: #3498db; letter-spacing: 4px; text-align: center;">` + code + `</p>
      <p>If you didn't request this, you can safely ignore this email.</p>
    </div>
  </body>
</html>`
}
