package http

import "github.com/dmitrijs2005/parceltrack/internal/server/services"

type authRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type verifyRequest struct {
	Email            string `json:"email" validate:"required,email"`
	VerificationCode string `json:"verificationCode" validate:"required"`
}

type resendQuery struct {
	EmailOrTelegramID string `form:"emailOrTelegramId" json:"emailOrTelegramId" validate:"required"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required"`
}

type resetPasswordRequest struct {
	Token           string `json:"token" validate:"required"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

// telegramWidgetRequest mirrors the Login Widget callback fields.
type telegramWidgetRequest struct {
	ID        *int64 `json:"id" validate:"required"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
	PhotoURL  string `json:"photo_url"`
	AuthDate  *int64 `json:"auth_date" validate:"required"`
	Hash      string `json:"hash" validate:"required"`
}

type telegramInitDataRequest struct {
	InitData string `json:"initData" validate:"required"`
}

type telegramStartAppRequest struct {
	Token string `json:"token" validate:"required"`
}

// loginResponse carries a null token for unverified accounts.
type loginResponse struct {
	Token      *string `json:"token"`
	ExpiresIn  int64   `json:"expiresIn"`
	IsVerified bool    `json:"isVerified"`
	Identifier string  `json:"emailOrTelegramId"`
}

func newLoginResponse(r *services.LoginResult) loginResponse {
	resp := loginResponse{
		ExpiresIn:  r.ExpiresIn,
		IsVerified: r.IsVerified,
		Identifier: r.Identifier,
	}
	if r.Token != "" {
		resp.Token = &r.Token
	}
	return resp
}

type userResponse struct {
	ID               string `json:"id"`
	Identifier       string `json:"emailOrTelegramId"`
	Role             string `json:"role"`
	Verified         bool   `json:"verified"`
	TelegramID       *int64 `json:"telegramId"`
	TelegramUsername string `json:"telegramUsername,omitempty"`
	FirstName        string `json:"firstName,omitempty"`
	LastName         string `json:"lastName,omitempty"`
	PhotoURL         string `json:"photoUrl,omitempty"`
}
