package domain

import "time"

// Message is a persisted contact-form submission. Rows are written once and
// never updated by this system.
type Message struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	IP        string    `json:"ip"`
}

// NewMessage is the insert payload. The store assigns ID and CreatedAt.
type NewMessage struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
	IP      string `json:"ip"`
}
