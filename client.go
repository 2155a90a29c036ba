package bonito

import (
	"github.com/kayac/Bonito/config"
	"github.com/kayac/Bonito/fcmv1"
	"github.com/pkg/errors"
)

// Sender sends a notification to fcm.
// Implementations must return a Result describing the outcome even when err is not nil.
type Sender interface {
	Send(fcmv1.Payload) (fcmv1.Result, error)
}

// NewSender creates a fcm v1 client from the configuration.
func NewSender(conf config.SectionFCMv1) (Sender, error) {
	if !conf.Enabled {
		return nil, errors.Wrap(fcmv1.ErrConfig, "fcm_v1 is not enabled")
	}
	c, err := fcmv1.NewClient(conf.TokenSource, conf.ProjectID, conf.EndpointURL, conf.ClientTimeout())
	if err != nil {
		return nil, err
	}
	return c, nil
}
