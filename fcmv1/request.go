package fcmv1

import (
	"firebase.google.com/go/messaging"
)

// Payload for fcm v1
type Payload struct {
	Message messaging.Message `json:"message"`
}

// Recipient returns the token, topic or condition which the message is sent to.
func (p Payload) Recipient() string {
	switch {
	case p.Message.Token != "":
		return p.Message.Token
	case p.Message.Topic != "":
		return p.Message.Topic
	}
	return p.Message.Condition
}

// MaxBulkRequests represens max count of request payloads in a request body.
const MaxBulkRequests = 500
