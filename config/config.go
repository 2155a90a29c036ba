package config

import (
	"net/url"
	"time"

	"github.com/kayac/Bonito/fcmv1"
	goconf "github.com/kayac/go-config"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// Limit values
const (
	MaxWorkerNum   = 119   // Maximum of worker number
	MinWorkerNum   = 1     // Minimum of worker number
	MaxSenderNum   = 150   // Maximum of sender number
	MinSenderNum   = 1     // Minimum of sender number
	MaxQueueSize   = 40960 // Maximum queue size.
	MinQueueSize   = 128   // Minimum Queue size.
	MaxRequestSize = 5000  // Maximum of requset count.
	MinRequestSize = 1     // Minimum of request size.
)

const (
	// Default array size of posted data. If not configures at file, this value is set.
	DefaultRequestQueueSize = 2000
	// Default port number of provider server
	DefaultPort = 8003
	// Default supervisor's queue size. If not configures at file, this value is set.
	DefaultQueueSize = 1000
	// Default multiplicity of sending notifications to fcm.
	DefaultSenderNum = 20
	// Default number of workers.
	DefaultWorkerNum = 8
	// Default limit of connections to the provider server.
	DefaultMaxConnections = 1000
)

// Config is the configure of a FCM v1 provider server
type Config struct {
	Provider SectionProvider `toml:"provider"`
	FCMv1    SectionFCMv1    `toml:"fcm_v1"`
}

// SectionProvider is Bonito provider configuration
type SectionProvider struct {
	WorkerNum        int `toml:"worker_num"`
	SenderNum        int `toml:"sender_num"`
	QueueSize        int `toml:"queue_size"`
	RequestQueueSize int `toml:"max_request_size"`
	Port             int `toml:"port"`
	DebugPort        int
	MaxConnections   int    `toml:"max_connections"`
	ErrorHook        string `toml:"error_hook"`
}

// SectionFCMv1 is the configuration of fcm/v1
type SectionFCMv1 struct {
	GoogleApplicationCredentials string             `toml:"google_application_credentials"`
	Endpoint                     string             `toml:"endpoint"`
	Timeout                      int                `toml:"timeout"` // seconds
	Enabled                      bool               `toml:"-"`
	ProjectID                    string             `toml:"-"`
	TokenSource                  oauth2.TokenSource `toml:"-"`
	EndpointURL                  *url.URL           `toml:"-"`
}

// ClientTimeout returns the timeout of requests to fcm.
func (s SectionFCMv1) ClientTimeout() time.Duration {
	if s.Timeout <= 0 {
		return fcmv1.ClientTimeout
	}
	return time.Duration(s.Timeout) * time.Second
}

// DefaultLoadConfig loads default /etc/bonito/bonito.toml
func DefaultLoadConfig() (Config, error) {
	return LoadConfig("/etc/bonito/bonito.toml")
}

// LoadConfig reads bonito.toml and loads on Config struct
func LoadConfig(fn string) (Config, error) {
	var config Config

	if err := goconf.LoadWithEnvTOML(&config, fn); err != nil {
		return config, err
	}

	config.setDefaults()

	// validates config parameters
	if err := (&config).validateConfig(); err != nil {
		return config, errors.Wrap(err, "validate config failed")
	}

	return config, nil
}

// if not set parameters, set default value.
func (c *Config) setDefaults() {
	if c.Provider.RequestQueueSize == 0 {
		c.Provider.RequestQueueSize = DefaultRequestQueueSize
	}

	if c.Provider.QueueSize == 0 {
		c.Provider.QueueSize = DefaultQueueSize
	}

	if c.Provider.Port == 0 {
		c.Provider.Port = DefaultPort
	}

	if c.Provider.WorkerNum == 0 {
		c.Provider.WorkerNum = DefaultWorkerNum
	}

	if c.Provider.SenderNum == 0 {
		c.Provider.SenderNum = DefaultSenderNum
	}

	if c.Provider.MaxConnections == 0 {
		c.Provider.MaxConnections = DefaultMaxConnections
	}
}

func (c *Config) validateConfig() error {
	if err := c.validateConfigProvider(); err != nil {
		return errors.Wrap(err, "[provider]")
	}
	if c.FCMv1.GoogleApplicationCredentials != "" {
		c.FCMv1.Enabled = true
		if err := c.validateConfigFCMv1(); err != nil {
			return errors.Wrap(err, "[fcm_v1]")
		}
	}
	return nil
}

func (c *Config) validateConfigProvider() error {
	if c.Provider.RequestQueueSize < MinRequestSize || c.Provider.RequestQueueSize > MaxRequestSize {
		return errors.Errorf("MaxRequestSize was out of available range: %d. (%d-%d)", c.Provider.RequestQueueSize,
			MinRequestSize, MaxRequestSize)
	}

	if c.Provider.QueueSize < MinQueueSize || c.Provider.QueueSize > MaxQueueSize {
		return errors.Errorf("QueueSize was out of available range: %d. (%d-%d)", c.Provider.QueueSize,
			MinQueueSize, MaxQueueSize)
	}

	if c.Provider.WorkerNum < MinWorkerNum || c.Provider.WorkerNum > MaxWorkerNum {
		return errors.Errorf("WorkerNum was out of available range: %d. (%d-%d)", c.Provider.WorkerNum,
			MinWorkerNum, MaxWorkerNum)
	}

	if c.Provider.SenderNum < MinSenderNum || c.Provider.SenderNum > MaxSenderNum {
		return errors.Errorf("SenderNum was out of available range: %d. (%d-%d)", c.Provider.SenderNum,
			MinSenderNum, MaxSenderNum)
	}

	return nil
}

func (c *Config) validateConfigFCMv1() error {
	projectID, ts, err := fcmv1.LoadCredentials(c.FCMv1.GoogleApplicationCredentials)
	if err != nil {
		return err
	}
	c.FCMv1.ProjectID = projectID
	c.FCMv1.TokenSource = ts

	if c.FCMv1.Endpoint != "" {
		return c.FCMv1.SetEndpoint(c.FCMv1.Endpoint)
	}
	return nil
}

// SetEndpoint overrides the URL which notifications are sent to.
func (s *SectionFCMv1) SetEndpoint(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.Wrapf(fcmv1.ErrConfig, "invalid endpoint: %s", endpoint)
	}
	s.Endpoint = endpoint
	s.EndpointURL = u
	return nil
}
