package models

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

// LoginResponse is the body returned by POST /login. Token is absent on
// failure, in which case Message explains why.
type LoginResponse struct {
	Token   string `json:"token,omitempty"`
	Message string `json:"message,omitempty"`
}

// RegisterRequest is the body of POST /register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserProfile is the body of GET /me.
type UserProfile struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}
