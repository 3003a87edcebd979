package checks

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	mdwlog "github.com/msto63/guardian/foundation/core/log"
	"github.com/msto63/guardian/pkg/constraint"
)

// URL schemes accepted by AssertURL unless configured otherwise
const (
	SchemeHTTP  = "http"
	SchemeHTTPS = "https"
	SchemeFTP   = "ftp"
)

// URLConnector tries to reach u. A nil error means the URL is reachable.
type URLConnector func(ctx context.Context, u *url.URL) error

// DefaultConnectTimeout bounds DefaultURLConnector
const DefaultConnectTimeout = 10 * time.Second

// DefaultURLConnector issues a GET for http(s) URLs and accepts responses
// below 400. Other schemes only require a TCP connection to the host.
func DefaultURLConnector(ctx context.Context, u *url.URL) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultConnectTimeout)
	defer cancel()

	switch strings.ToLower(u.Scheme) {
	case SchemeHTTP, SchemeHTTPS:
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()
		if resp.StatusCode >= http.StatusBadRequest {
			return fmt.Errorf("HTTP response code %d", resp.StatusCode)
		}
		return nil
	}

	host := u.Host
	if u.Port() == "" {
		port := "21"
		if !strings.EqualFold(u.Scheme, SchemeFTP) {
			return fmt.Errorf("no port for scheme %s", u.Scheme)
		}
		host = net.JoinHostPort(u.Hostname(), port)
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", host)
	if err != nil {
		return err
	}
	return conn.Close()
}

// AssertURL requires the string form of a value to be an absolute URL with
// a permitted scheme, and optionally to be reachable
type AssertURL struct {
	constraint.Base
	schemes   []string
	connect   bool
	connector URLConnector
	logger    *mdwlog.Logger
}

// NewAssertURL permits http, https and ftp
func NewAssertURL() *AssertURL {
	c := &AssertURL{
		schemes:   []string{SchemeHTTP, SchemeHTTPS, SchemeFTP},
		connector: DefaultURLConnector,
		logger:    mdwlog.GetDefault().WithField("component", "checks"),
	}
	c.Init("AssertURL", c.createVars, constraint.TargetValues)
	return c
}

func (c *AssertURL) createVars() map[string]string {
	return map[string]string{
		"permittedSchemes": "[" + strings.Join(c.schemes, ", ") + "]",
		"connect":          fmt.Sprint(c.connect),
	}
}

func (c *AssertURL) PermittedSchemes() []string { return c.schemes }
func (c *AssertURL) IsConnect() bool            { return c.connect }

func (c *AssertURL) SetPermittedSchemes(schemes ...string) {
	c.schemes = append([]string(nil), schemes...)
	c.RequireMessageVariablesRecreation()
}

func (c *AssertURL) SetConnect(connect bool) {
	c.connect = connect
	c.RequireMessageVariablesRecreation()
}

// SetConnector replaces the connector used when connect is enabled
func (c *AssertURL) SetConnector(connector URLConnector) {
	if connector == nil {
		connector = DefaultURLConnector
	}
	c.connector = connector
}

func (c *AssertURL) SetLogger(logger *mdwlog.Logger) { c.logger = logger }

func (c *AssertURL) IsSatisfied(_, value interface{}, cycle constraint.ValidationCycle) (bool, error) {
	if constraint.IsNil(value) {
		return true, nil
	}
	raw := constraint.AsString(value)
	u, err := url.Parse(raw)
	if err != nil {
		c.logger.Debug("URL does not parse", mdwlog.Fields{"url": raw, "error": err.Error()})
		return false, nil
	}
	if u.Scheme == "" || (u.Opaque == "" && u.Host == "" && u.Path == "") {
		c.logger.Debug("URL scheme or scheme-specific part missing", mdwlog.Field("url", raw))
		return false, nil
	}
	for _, scheme := range c.schemes {
		if !strings.EqualFold(scheme, u.Scheme) {
			continue
		}
		if !c.connect {
			return true, nil
		}
		ctx := context.Background()
		if cycle != nil && cycle.Context() != nil {
			ctx = cycle.Context()
		}
		if err := c.connector(ctx, u); err != nil {
			c.logger.Debug("connecting failed", mdwlog.Fields{"url": raw, "error": err.Error()})
			return false, nil
		}
		return true, nil
	}
	return false, nil
}
