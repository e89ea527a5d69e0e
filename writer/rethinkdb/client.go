package rethinkdb

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	version "github.com/hashicorp/go-version"
	r "gopkg.in/gorethink/gorethink.v3"

	"github.com/vocabstream/vocabstream/client"
	"github.com/vocabstream/vocabstream/log"
)

const (
	// DefaultURI is the default endpoint for RethinkDB on the local machine.
	// Primarily used when initializing a new Client without a specific URI.
	DefaultURI = "rethinkdb://127.0.0.1:28015"

	// DefaultTimeout is the default time.Duration used if one is not provided for options
	// that pertain to timeouts.
	DefaultTimeout = 10 * time.Second
)

var (
	_ client.Client = &Client{}
	_ client.Closer = &Client{}

	rethinkDbVersionMatcher = regexp.MustCompile(`\d+\.\d+(\.\d+)?`)
	minServerVersion, _     = version.NewConstraint(">= 2.0")
)

// Client creates and holds the session to RethinkDB
type Client struct {
	db, uri string

	sessionTimeout time.Duration
	tlsConfig      *tls.Config

	session *r.Session
}

// Session contains an instance of the rethink.Session for use by the writer
type Session struct {
	session *r.Session
}

// ClientOptionFunc is a function that configures a Client.
// It is used in NewClient.
type ClientOptionFunc func(*Client) error

// NewClient creates a new client to work with RethinkDB.
//
// If no URI is configured, it uses DefaultURI.
//
// An error is also returned when some configuration option is invalid
func NewClient(options ...ClientOptionFunc) (*Client, error) {
	c := &Client{
		uri:            DefaultURI,
		sessionTimeout: DefaultTimeout,
	}

	for _, option := range options {
		if err := option(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// WithURI defines the full connection string of the RethinkDB server.
func WithURI(uri string) ClientOptionFunc {
	return func(c *Client) error {
		u, err := url.Parse(uri)
		if err != nil {
			return client.InvalidURIError{URI: uri, Err: err.Error()}
		}
		if u.Host == "" {
			return client.InvalidURIError{URI: uri, Err: "missing host"}
		}
		c.uri = uri
		return nil
	}
}

// WithDatabase sets the database the session defaults to.
func WithDatabase(db string) ClientOptionFunc {
	return func(c *Client) error {
		c.db = db
		return nil
	}
}

// WithSessionTimeout overrides the DefaultTimeout and should be parseable by time.ParseDuration
func WithSessionTimeout(timeout string) ClientOptionFunc {
	return func(c *Client) error {
		if timeout == "" {
			c.sessionTimeout = DefaultTimeout
			return nil
		}

		t, err := time.ParseDuration(timeout)
		if err != nil {
			return client.InvalidTimeoutError{Timeout: timeout}
		}
		c.sessionTimeout = t
		return nil
	}
}

// WithSSL configures the database connection to connect via TLS.
func WithSSL(ssl bool) ClientOptionFunc {
	return func(c *Client) error {
		if ssl {
			tlsConfig := &tls.Config{InsecureSkipVerify: true}
			tlsConfig.RootCAs = x509.NewCertPool()
			c.tlsConfig = tlsConfig
		}
		return nil
	}
}

// WithCACerts configures the RootCAs for the underlying TLS connection. Each
// cert is either a path to a PEM file or the PEM itself.
func WithCACerts(certs []string) ClientOptionFunc {
	return func(c *Client) error {
		if len(certs) > 0 {
			roots := x509.NewCertPool()
			for _, cert := range certs {
				if _, err := os.Stat(cert); err == nil {
					b, err := os.ReadFile(cert)
					if err != nil {
						return err
					}
					cert = string(b)
				}
				if ok := roots.AppendCertsFromPEM([]byte(cert)); !ok {
					return client.ErrInvalidCert
				}
			}
			if c.tlsConfig != nil {
				c.tlsConfig.RootCAs = roots
			} else {
				c.tlsConfig = &tls.Config{RootCAs: roots}
			}
			c.tlsConfig.InsecureSkipVerify = false
		}
		return nil
	}
}

// Connect wraps the underlying session to the RethinkDB database
func (c *Client) Connect(ctx context.Context) (client.Session, error) {
	if c.session == nil {
		if err := c.initConnection(); err != nil {
			return nil, err
		}
	}
	return &Session{c.session}, nil
}

// Close fulfills the Closer interface and takes care of cleaning up the rethink.Session
func (c *Client) Close() {
	if c.session != nil {
		c.session.Close(r.CloseOpts{NoReplyWait: false})
		c.session = nil
	}
}

func (c *Client) initConnection() error {
	uri, _ := url.Parse(c.uri)

	opts := r.ConnectOpts{
		Addresses: strings.Split(uri.Host, ","),
		Database:  c.db,
		Timeout:   c.sessionTimeout,
		MaxIdle:   10,
		MaxOpen:   20,
		TLSConfig: c.tlsConfig,
	}

	if uri.User != nil {
		if pwd, ok := uri.User.Password(); ok {
			opts.Username = uri.User.Username()
			opts.Password = pwd
		}
	}

	log.With("addresses", opts.Addresses).With("db", c.db).Debugln("connection info")
	var err error
	c.session, err = r.Connect(opts)
	if err != nil {
		return client.ConnectError{Reason: err.Error()}
	}
	return c.assertServerVersion()
}

func (c *Client) assertServerVersion() error {
	cursor, err := r.DB("rethinkdb").Table("server_status").Run(c.session)
	if err != nil {
		return err
	}
	defer cursor.Close()

	if cursor.IsNil() {
		return errors.New("could not determine the RethinkDB server version: no rows returned from the server_status table")
	}

	var serverStatus struct {
		Process struct {
			Version string `gorethink:"version"`
		} `gorethink:"process"`
	}
	cursor.Next(&serverStatus)

	if _, err := serverVersion(c.uri, serverStatus.Process.Version); err != nil {
		return err
	}
	log.With("version", serverStatus.Process.Version).Debugln("rethinkdb server info")
	return nil
}

// serverVersion extracts the version from a "rethinkdb 2.3.5~0trusty (GCC 4.8.2)"
// style string and checks it is supported.
func serverVersion(uri, raw string) (*version.Version, error) {
	if raw == "" {
		return nil, client.VersionError{
			URI: uri,
			V:   raw,
			Err: "could not determine the RethinkDB server version: process.version key missing",
		}
	}
	fields := strings.Fields(raw)
	versionString := ""
	if len(fields) > 1 {
		versionString = rethinkDbVersionMatcher.FindString(fields[1])
	}
	if versionString == "" {
		return nil, client.VersionError{URI: uri, V: raw, Err: "malformed version string"}
	}

	v, err := version.NewVersion(versionString)
	if err != nil {
		return nil, client.VersionError{URI: uri, V: raw, Err: err.Error()}
	}
	if !minServerVersion.Check(v) {
		return nil, fmt.Errorf("RethinkDB server version too old: expected %v, but was %v", minServerVersion, v)
	}
	return v, nil
}
