package fcmv1

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// fcm v1 Client const variables
const (
	DefaultFCMEndpointFmt = "https://fcm.googleapis.com/v1/projects/%s/messages:send"
	Scope                 = "https://www.googleapis.com/auth/firebase.messaging"
	ClientTimeout         = time.Second * 10
)

// Client is FCM v1 client
type Client struct {
	endpoint    *url.URL
	Client      *http.Client
	tokenSource oauth2.TokenSource
}

// Send sends a notification to fcm.
// The returned Result describes the outcome also when err is not nil.
func (c *Client) Send(p Payload) (Result, error) {
	result := Result{Token: p.Recipient()}
	fail := func(e Error, err error) (Result, error) {
		result.Error = &e
		return result, err
	}

	req, err := c.NewRequest(p)
	if err != nil {
		e, _ := AsError(err)
		return fail(e, err)
	}

	res, err := c.Client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return fail(ErrTimeout, errors.Wrap(ErrTimeout, err.Error()))
		}
		// no HTTP status has been observed
		e := NewServerError(ClassifyError(0, err.Error()))
		return fail(e, e)
	}
	defer res.Body.Close()
	result.StatusCode = res.StatusCode

	b, err := ioutil.ReadAll(res.Body)
	if err != nil {
		if isTimeout(err) {
			return fail(ErrTimeout, errors.Wrap(ErrTimeout, err.Error()))
		}
		return fail(ErrDeserialization, errors.Wrapf(ErrDeserialization, "status:%d %s", res.StatusCode, err))
	}

	var body ResponseBody
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		// a proxy in front of fcm may respond with html or an empty body
		detail := strings.TrimSpace(string(b))
		if err := json.Unmarshal(b, &body); err == nil {
			detail = ""
			if body.Error != nil {
				detail = body.Error.Message
			}
		}
		e := NewServerError(ClassifyError(res.StatusCode, detail))
		return fail(e, e)
	}

	if err := json.Unmarshal(b, &body); err != nil {
		return fail(ErrDeserialization, errors.Wrapf(ErrDeserialization, "status:%d %s", res.StatusCode, err))
	}

	if body.Name == "" {
		return fail(ErrDeserialization, errors.Wrapf(ErrDeserialization, "status:%d unexpected response", res.StatusCode))
	}

	result.Name = body.Name
	return result, nil
}

// NewRequest creates request for fcm
func (c *Client) NewRequest(p Payload) (*http.Request, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, errors.Wrap(ErrDeserialization, err.Error())
	}
	token, err := c.tokenSource.Token()
	if err != nil {
		return nil, errors.Wrap(ErrAuth, err.Error())
	}
	req, err := http.NewRequest("POST", c.endpoint.String(), bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(ErrConfig, err.Error())
	}
	token.SetAuthHeader(req)
	req.Header.Set("Content-Type", "application/json")

	return req, nil
}

// Endpoint returns the URL which notifications are sent to.
func (c *Client) Endpoint() *url.URL {
	return c.endpoint
}

// NewClient establishes a http connection with fcm v1
func NewClient(ts oauth2.TokenSource, projectID string, endpoint *url.URL, timeout time.Duration) (*Client, error) {
	if ts == nil {
		return nil, errors.Wrap(ErrConfig, "token source is not specified")
	}

	client := &http.Client{
		Timeout: timeout,
	}

	c := &Client{
		Client:      client,
		tokenSource: oauth2.ReuseTokenSource(nil, ts),
	}

	if endpoint != nil {
		c.endpoint = endpoint
	} else {
		if projectID == "" {
			return nil, errors.Wrap(ErrConfig, "project_id is not defined")
		}
		ep, err := url.Parse(fmt.Sprintf(DefaultFCMEndpointFmt, url.PathEscape(projectID)))
		if err != nil {
			return nil, errors.Wrap(ErrConfig, err.Error())
		}
		c.endpoint = ep
	}

	return c, nil
}

// NewClientFromCredentials creates a client from a service account json file
func NewClientFromCredentials(serviceAccountFilepath string, endpoint *url.URL, timeout time.Duration) (*Client, error) {
	projectID, ts, err := LoadCredentials(serviceAccountFilepath)
	if err != nil {
		return nil, err
	}
	return NewClient(ts, projectID, endpoint, timeout)
}

// LoadCredentials reads a service account json file and returns its project id and a token source.
func LoadCredentials(serviceAccountFilepath string) (string, oauth2.TokenSource, error) {
	b, err := ioutil.ReadFile(serviceAccountFilepath)
	if err != nil {
		return "", nil, errors.Wrap(ErrConfig, err.Error())
	}
	var serviceAccount struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal(b, &serviceAccount); err != nil {
		return "", nil, errors.Wrapf(ErrConfig, "invalid service account json: %s %s", serviceAccountFilepath, err)
	}
	if serviceAccount.ProjectID == "" {
		return "", nil, errors.Wrapf(ErrConfig, "invalid service account json: %s project_id is not defined", serviceAccountFilepath)
	}

	conf, err := google.JWTConfigFromJSON(b, Scope)
	if err != nil {
		return "", nil, errors.Wrap(ErrConfig, err.Error())
	}

	return serviceAccount.ProjectID, conf.TokenSource(context.Background()), nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
