package models

const (
	CompanyStatusActive    = "active"
	CompanyStatusInactive  = "inactive"
	CompanyStatusSuspended = "suspended"
	CompanyStatusPending   = "pending"
)

const (
	UserTypeAdmin = "admin"
	UserTypeUser  = "user"
	UserTypeOwner = "owner"
	UserTypeGuest = "guest"
)

const (
	ProviderEmail  = "email"
	ProviderGoogle = "google"
)

type Company struct {
	ID           string `json:"id"`
	Slug         string `json:"slug,omitempty"`
	Domain       string `json:"domain,omitempty"`
	Name         string `json:"name"`
	Email        string `json:"email,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Locale       string `json:"locale,omitempty"`
	Timezone     string `json:"timezone,omitempty"`
	Currency     string `json:"currency,omitempty"`
	Status       string `json:"status"`
	WhiteLabelID string `json:"white_label_id,omitempty"`
	AddressID    string `json:"address_id,omitempty"`
	CreatedAt    int64  `json:"created_at"`
	UpdatedAt    int64  `json:"updated_at"`

	WhiteLabel *WhiteLabel `json:"white_label,omitempty"`
	Address    *Address    `json:"address,omitempty"`
}

func (c *Company) Active() bool {
	return c.Status == CompanyStatusActive
}

type WhiteLabel struct {
	ID                             string            `json:"id"`
	LogoPath                       string            `json:"logo_path,omitempty"`
	FaviconPath                    string            `json:"favicon_path,omitempty"`
	BannerLoginPath                string            `json:"banner_login_path,omitempty"`
	BannerSignupPath               string            `json:"banner_signup_path,omitempty"`
	BannerChangePasswordPath       string            `json:"banner_change_password_path,omitempty"`
	BannerRequestPasswordResetPath string            `json:"banner_request_password_reset_path,omitempty"`
	Colors                         map[string]string `json:"colors"`
	CreatedAt                      int64             `json:"created_at"`
	UpdatedAt                      int64             `json:"updated_at"`
	UpdatedBy                      string            `json:"updated_by,omitempty"`
}

// AssetPaths maps each whitelabel asset slot to its stored object path.
// Empty slots are omitted.
func (w *WhiteLabel) AssetPaths() map[string]string {
	paths := map[string]string{
		"logo":                          w.LogoPath,
		"favicon":                       w.FaviconPath,
		"banner_login":                  w.BannerLoginPath,
		"banner_signup":                 w.BannerSignupPath,
		"banner_change_password":        w.BannerChangePasswordPath,
		"banner_request_password_reset": w.BannerRequestPasswordResetPath,
	}
	for k, v := range paths {
		if v == "" {
			delete(paths, k)
		}
	}
	return paths
}

type Address struct {
	ID         string `json:"id"`
	Street     string `json:"street,omitempty"`
	Number     string `json:"number,omitempty"`
	Complement string `json:"complement,omitempty"`
	District   string `json:"district,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	ZipCode    string `json:"zip_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

type User struct {
	ID        string `json:"id"`
	CompanyID string `json:"company_id"`
	Email     string `json:"email"`
	FullName  string `json:"full_name"`
	Type      string `json:"type"`
	IsActive  bool   `json:"is_active"`
	IsBanned  bool   `json:"is_banned"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`

	// Populated by account lookups used during sign-in.
	CompanyStatus  string          `json:"-"`
	Authentication *Authentication `json:"-"`
}

// Authentication is the credential row paired 1:1 with a User.
type Authentication struct {
	ID                    string `json:"id"`
	UserID                string `json:"user_id"`
	Provider              string `json:"provider"`
	PasswordHash          string `json:"-"`
	AccessToken           string `json:"-"`
	AccessTokenExpiresAt  *int64 `json:"access_token_expires_at,omitempty"`
	RefreshToken          string `json:"-"`
	RefreshTokenExpiresAt *int64 `json:"refresh_token_expires_at,omitempty"`
	ResetToken            string `json:"-"`
	ResetTokenExpiresAt   *int64 `json:"-"`
	LastLogin             *int64 `json:"last_login,omitempty"`
	CreatedAt             int64  `json:"created_at"`
	UpdatedAt             int64  `json:"updated_at"`
}

type AuditEntry struct {
	ID        string                 `json:"id"`
	CompanyID string                 `json:"company_id,omitempty"`
	AuthID    string                 `json:"auth_id,omitempty"`
	Event     string                 `json:"event"`
	IPAddress string                 `json:"ip_address"`
	UserAgent string                 `json:"user_agent"`
	Origin    string                 `json:"origin"`
	Metadata  map[string]interface{} `json:"metadata"`
	CreatedAt int64                  `json:"created_at"`
}
