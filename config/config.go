// Package config loads the client settings from a YAML file.
package config

import (
	"crypto/x509"
	"os"
	"socket-client/application/http"
	"socket-client/application/util/target"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultFilename is looked up in the working directory when no path is given.
const DefaultFilename = "socketclient.yaml"

type Config struct {
	// Reference is the request run when the user asks for no specific target.
	Reference Reference `yaml:"reference"`
	Timeout   Timeout   `yaml:"timeout"`

	// Headers are sent with every request, as "Name: value" lines.
	Headers []string `yaml:"headers"`

	TLS     TLS     `yaml:"tls"`
	Payload Payload `yaml:"payload"`
	Output  Output  `yaml:"output"`
}

type Reference struct {
	URL    string `yaml:"url"`
	Method string `yaml:"method"`
	Body   string `yaml:"body"`
}

type Timeout struct {
	Connect time.Duration `yaml:"connect"`
	Read    time.Duration `yaml:"read"`
}

type TLS struct {
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`

	// CAFile is a PEM bundle that replaces the platform trust store.
	CAFile string `yaml:"ca_file"`
}

type Payload struct {
	// SchemaFile is a JSON Schema every request body must satisfy.
	SchemaFile string `yaml:"schema_file"`
}

type Output struct {
	NoColor bool `yaml:"no_color"`
	Verbose bool `yaml:"verbose"`
}

func Default() *Config {
	return &Config{
		Reference: Reference{
			URL:    "https://jsonplaceholder.typicode.com/todos/1",
			Method: http.MethodGet,
		},
		Timeout: Timeout{
			Connect: 10 * time.Second,
			Read:    5 * time.Second,
		},
		Headers: []string{"User-Agent: socket-client/1.0"},
	}
}

// Load reads path over the defaults. An empty path falls back to
// [DefaultFilename] and then to the defaults alone.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFilename
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
	case !explicit && errors.Is(err, os.ErrNotExist):
		return cfg, nil
	default:
		return nil, errors.Wrapf(err, "reading config %s", path)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing config %s", path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "validating config %s", path)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Timeout.Read <= 0 {
		return errors.Errorf("read timeout must be positive, got %s", c.Timeout.Read)
	}
	if c.Timeout.Connect <= 0 {
		return errors.Errorf("connect timeout must be positive, got %s", c.Timeout.Connect)
	}

	if _, err := target.Parse(c.Reference.URL); err != nil {
		return errors.Wrap(err, "reference url")
	}
	if err := http.ValidateMethod(c.Reference.Method); err != nil {
		return errors.Wrap(err, "reference method")
	}
	if http.CarriesPayload(c.Reference.Method) {
		// Only well-formedness; the schema file is read when a session starts.
		if err := new(http.PayloadValidator).Validate([]byte(c.Reference.Body)); err != nil {
			return errors.Wrap(err, "reference body")
		}
	}

	if _, err := c.Fields(); err != nil {
		return err
	}

	return nil
}

// Fields parses Headers.
func (c *Config) Fields() (http.Fields, error) {
	fields, err := http.ParseFields(c.Headers)
	if err != nil {
		return nil, errors.Wrap(err, "headers")
	}
	return fields, nil
}

// RootCAs loads TLS.CAFile. It returns nil when no file is configured.
func (c *Config) RootCAs() (*x509.CertPool, error) {
	if c.TLS.CAFile == "" {
		return nil, nil
	}

	pem, err := os.ReadFile(c.TLS.CAFile)
	if err != nil {
		return nil, errors.Wrap(err, "reading ca file")
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.Errorf("no certificate found in %s", c.TLS.CAFile)
	}
	return pool, nil
}

// Schema returns the contents of Payload.SchemaFile, or nil when none is set.
func (c *Config) Schema() ([]byte, error) {
	if c.Payload.SchemaFile == "" {
		return nil, nil
	}

	schema, err := os.ReadFile(c.Payload.SchemaFile)
	if err != nil {
		return nil, errors.Wrap(err, "reading payload schema")
	}
	return schema, nil
}
