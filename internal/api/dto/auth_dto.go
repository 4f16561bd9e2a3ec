package dto

import "github.com/spec-kit/vitalwarrior/internal/domain"

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest payload for new accounts.
type RegisterRequest struct {
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	StudentID       string `json:"student_id"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Profile converts the request to the registration profile.
func (r RegisterRequest) Profile() domain.RegistrationProfile {
	return domain.RegistrationProfile(r)
}

// AuthResponse describes the signed-in user.
type AuthResponse struct {
	User        domain.UserRecord `json:"user"`
	DisplayName string            `json:"display_name"`
}

// NewAuthResponse builds the response for user.
func NewAuthResponse(user domain.UserRecord) AuthResponse {
	return AuthResponse{User: user, DisplayName: user.DisplayName()}
}

// OAuthResponse carries the provider URL to redirect to.
type OAuthResponse struct {
	URL string `json:"url"`
}

// ContactRequest payload for the contact form.
type ContactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}
