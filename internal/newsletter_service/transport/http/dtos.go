package http

// PublishIssueRequest is the body of POST /admin/newsletters.
type PublishIssueRequest struct {
	Title       string `json:"title"`
	HTMLContent string `json:"html_content"`
	TextContent string `json:"text_content"`
}

// SubscribeRequest is the body of POST /subscriptions.
type SubscribeRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type SubscribeResponse struct {
	ID string `json:"id"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}
