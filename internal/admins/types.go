package admins

import "time"

// Second-factor methods. Only TOTP is implemented; email and sms are
// declared for the login response shape but their verification endpoints
// answer 501.
const (
	MethodTOTP  = "totp"
	MethodEmail = "email"
	MethodSMS   = "sms"
)

// Admin is the item stored in the admins table, partitioned by its own id.
type Admin struct {
	AdminID            string    `dynamodbav:"admin_id" json:"admin_id"` // PK
	Email              string    `dynamodbav:"email" json:"email"`       // lowercased, GSI key
	PasswordHash       string    `dynamodbav:"password_hash" json:"-"`
	Name               string    `dynamodbav:"name" json:"name"`
	Role               string    `dynamodbav:"role" json:"role"`
	TwoFactorEnabled   bool      `dynamodbav:"two_factor_enabled" json:"two_factor_enabled"`
	TwoFactorMethod    string    `dynamodbav:"two_factor_method,omitempty" json:"two_factor_method,omitempty"`
	TOTPSecret         string    `dynamodbav:"totp_secret,omitempty" json:"-"`
	BackupCodes        []string  `dynamodbav:"backup_codes,omitempty" json:"-"`
	BackupCodesVersion int64     `dynamodbav:"backup_codes_version,omitempty" json:"-"`
	LastLoginAt        time.Time `dynamodbav:"last_login_at,omitempty" json:"last_login_at,omitempty"`
	CreatedAt          time.Time `dynamodbav:"created_at" json:"created_at"`
	UpdatedAt          time.Time `dynamodbav:"updated_at" json:"updated_at"`
}

// TwoFactorUpdate is a full replacement of an admin's second-factor state.
type TwoFactorUpdate struct {
	Enabled     bool
	Method      string
	TOTPSecret  string
	BackupCodes []string
}
