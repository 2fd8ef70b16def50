package auth

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"
)

const (
	totpIssuer = "YBM Bakes"
	// totpSkew tolerates clock drift of two 30-second steps either side.
	totpSkew = 2

	backupCodeCount = 10
	qrSize          = 256
)

// Enrollment is the material handed to the admin during 2FA setup. The QR
// encodes the provisioning URL for authenticator apps.
type Enrollment struct {
	Secret string
	URL    string
	QRPNG  []byte
}

// NewEnrollment generates a fresh TOTP secret for an admin account.
func NewEnrollment(accountEmail string) (*Enrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: accountEmail,
	})
	if err != nil {
		return nil, fmt.Errorf("generate totp secret: %w", err)
	}
	png, err := qrcode.Encode(key.URL(), qrcode.Medium, qrSize)
	if err != nil {
		return nil, fmt.Errorf("encode provisioning qr: %w", err)
	}
	return &Enrollment{
		Secret: key.Secret(),
		URL:    key.URL(),
		QRPNG:  png,
	}, nil
}

// ValidateTOTP checks a 6-digit code against a secret with skew tolerance.
func ValidateTOTP(code, secret string, at time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, at, totp.ValidateOpts{
		Period:    30,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// GenerateBackupCodes mints the one-time recovery codes issued when 2FA is
// enabled. Each is 8 hex characters grouped as XXXX-XXXX.
func GenerateBackupCodes() ([]string, error) {
	codes := make([]string, backupCodeCount)
	for i := range codes {
		buf := make([]byte, 4)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("generate backup code: %w", err)
		}
		codes[i] = fmt.Sprintf("%02x%02x-%02x%02x", buf[0], buf[1], buf[2], buf[3])
	}
	return codes, nil
}
