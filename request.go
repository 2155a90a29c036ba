package bonito

import (
	"github.com/kayac/Bonito/fcmv1"
)

// Request is a notification accepted by the provider.
type Request struct {
	Payload fcmv1.Payload
}
