package dto

type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RequestResetRequest struct {
	Username string `json:"username"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// LoginResponse keeps the userId key the web client reads.
type LoginResponse struct {
	Message string `json:"message"`
	UserID  int64  `json:"userId"`
}

type RequestResetResponse struct {
	Message    string `json:"message"`
	ResetToken string `json:"reset_token,omitempty"`
}
