package constants

// Static route constants
const (
	PublicRoute = "/"
	// Full webhook path, exempt from API rate limiting
	WebhookRoute = "/api/v1/webhook/payments"
)
