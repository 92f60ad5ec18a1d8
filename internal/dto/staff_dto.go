package dto

// ─── Request DTOs ────────────────────────────────────────────────────────────

type LoginRequest struct {
	Username string `json:"username" validate:"required,min=1"`
	Password string `json:"password" validate:"required,min=4"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type ContactFields struct {
	Phone   string `json:"phone"   validate:"omitempty,max=30"`
	Email   string `json:"email"   validate:"omitempty,email"`
	Address string `json:"address" validate:"omitempty,max=255"`
}

type CreateStaffRequest struct {
	Username   string        `json:"username"   validate:"required,min=1,max=150"`
	Name       string        `json:"name"       validate:"required,min=2,max=100"`
	Password   string        `json:"password"   validate:"required,min=8"`
	Role       string        `json:"role"       validate:"required,oneof=admin staff"`
	Department string        `json:"department" validate:"omitempty,max=100"`
	Position   string        `json:"position"   validate:"omitempty,max=100"`
	Contact    ContactFields `json:"contact"`
}

// UpdateProfileRequest carries optional fields; empty values are left untouched.
type UpdateProfileRequest struct {
	Name       string         `json:"name"       validate:"omitempty,min=2,max=100"`
	Department string         `json:"department" validate:"omitempty,max=100"`
	Position   string         `json:"position"   validate:"omitempty,max=100"`
	Contact    *ContactFields `json:"contact"`
	Password   string         `json:"password"   validate:"omitempty,min=8"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type StaffResponse struct {
	ID         string        `json:"id"`
	Username   string        `json:"username"`
	Name       string        `json:"name"`
	Role       string        `json:"role"`
	Department string        `json:"department"`
	Position   string        `json:"position"`
	Contact    ContactFields `json:"contact"`
	PhotoURL   *string       `json:"photo_url"`
	Active     bool          `json:"active"`
}

type LoginResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	TokenType    string        `json:"token_type"`
	ExpiresIn    int           `json:"expires_in"` // seconds
	User         StaffResponse `json:"user"`
}
