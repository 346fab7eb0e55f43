package api

// requests---------------------

type ChatRequest struct {
	Message   string `json:"message" validate:"required"`
	SessionID string `json:"session_id" validate:"required"`
}

type FillFormRequest struct {
	FormType  string `json:"form_type" validate:"required"`
	SessionID string `json:"session_id" validate:"required"`
}

// responses--------------------

type ChatResponse struct {
	Reply string `json:"reply"`
	// ActionNeeded is set when the message is a recognized form-fill
	// command the frontend should act on instead of showing the reply.
	ActionNeeded string `json:"action_needed,omitempty"`
}

type UploadResponse struct {
	Message  string `json:"message"`
	Filename string `json:"filename"`
}

type FormInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ListFormsResponse struct {
	Forms []FormInfo `json:"forms"`
}

type ErrorResponse struct {
	Kind    string `json:"kind" example:"CONFIG_NOT_FOUND"`
	Message string `json:"message" example:"Configuration for form type 'I-999' not found."`
}
