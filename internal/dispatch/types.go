package dispatch

// Request is the inbound notification request. All three fields are required.
type Request struct {
	UserID string `json:"user_id"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// Outcome records one token's delivery result.
type Outcome struct {
	Token     string
	Succeeded bool
}

// Summary aggregates the batch result returned to the caller.
type Summary struct {
	Message    string `json:"message"`
	Successful int    `json:"successful"`
	Failed     int    `json:"failed"`
	Total      int    `json:"total"`
}

// Response messages for the two normal completion shapes.
const (
	MessageSent     = "Notifications sent"
	MessageNoTokens = "No device tokens found for this user"
)
