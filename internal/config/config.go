// Package config loads chat server and client settings from defaults, an
// optional .env file, environment variables and command line flags, in that
// order of precedence.
package config

import (
	"math/rand"
	"net"
	"os"
	"strconv"
	"time"

	flags "github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// ErrConfig is returned when the configuration cannot be loaded or is invalid.
var ErrConfig = errors.New("configuration error")

// ErrHelp is returned when --help was requested; the usage has been printed.
var ErrHelp = errors.New("help requested")

// Endpoint holds the settings shared by the server and the client.
type Endpoint struct {
	Hostname     string `long:"hostname" env:"HOSTNAME" default:"localhost" description:"Host to listen on or connect to."`
	Port         int    `long:"port" env:"PORT" default:"11111" description:"TCP port."`
	MaxFrameSize int    `long:"max-frame-size" env:"MAX_FRAME_SIZE" default:"67108864" description:"Largest accepted frame in bytes, negative for no limit."`
	Verbose      []bool `short:"v" long:"verbose" description:"Show verbose logging."`
}

// Addr returns the host:port pair to listen on or dial.
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Hostname, strconv.Itoa(e.Port))
}

// Verbosity returns how many times -v was given.
func (e Endpoint) Verbosity() int {
	return len(e.Verbose)
}

func (e Endpoint) validate() error {
	if e.Port < 1 || e.Port > 65535 {
		return errors.Wrapf(ErrConfig, "port %d out of range", e.Port)
	}
	if e.Hostname == "" {
		return errors.Wrap(ErrConfig, "empty hostname")
	}
	return nil
}

// Server holds the server settings.
type Server struct {
	Endpoint

	RateLimit   float64       `long:"rate-limit" env:"RATE_LIMIT" default:"0" description:"Messages per second accepted from each peer, 0 for no limit."`
	RateBurst   int           `long:"rate-burst" env:"RATE_BURST" default:"20" description:"Burst size for --rate-limit."`
	IdleTimeout time.Duration `long:"idle-timeout" env:"IDLE_TIMEOUT" default:"0s" description:"Disconnect peers silent for this long, 0 to never."`
}

func (s Server) validate() error {
	if err := s.Endpoint.validate(); err != nil {
		return err
	}
	if s.RateLimit < 0 {
		return errors.Wrapf(ErrConfig, "negative rate limit %v", s.RateLimit)
	}
	if s.IdleTimeout < 0 {
		return errors.Wrapf(ErrConfig, "negative idle timeout %v", s.IdleTimeout)
	}
	return nil
}

// Client holds the client settings.
type Client struct {
	Endpoint

	Username  string `long:"username" env:"USERNAME" description:"Name used in the greeting message (default: user-XXXXX)."`
	ImagesDir string `long:"images-dir" env:"IMAGES_DIR" default:"incoming_images" description:"Directory for received images."`
	FilesDir  string `long:"files-dir" env:"FILES_DIR" default:"incoming_files" description:"Directory for received files."`
}

// LoadServer reads the server configuration. args excludes the program name.
func LoadServer(args []string) (Server, error) {
	var cfg Server
	if err := load(&cfg, args); err != nil {
		return Server{}, err
	}
	if err := cfg.validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// LoadClient reads the client configuration. args excludes the program name.
func LoadClient(args []string) (Client, error) {
	var cfg Client
	if err := load(&cfg, args); err != nil {
		return Client{}, err
	}
	if err := cfg.validate(); err != nil {
		return Client{}, err
	}
	if cfg.Username == "" {
		cfg.Username = RandomUsername()
	}
	return cfg, nil
}

func load(data any, args []string) error {
	// A missing .env file is not an error; existing variables win over it.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(ErrConfig, "load .env: %v", err)
	}

	parser := flags.NewParser(data, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return ErrHelp
		}
		return errors.Wrap(ErrConfig, err.Error())
	}
	return nil
}

const usernameAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomUsername returns "user-" followed by five random alphanumerics.
func RandomUsername() string {
	b := make([]byte, 5)
	for i := range b {
		b[i] = usernameAlphabet[rand.Intn(len(usernameAlphabet))]
	}
	return "user-" + string(b)
}
