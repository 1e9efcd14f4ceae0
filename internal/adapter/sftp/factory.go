package sftp

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	pkgsftp "github.com/pkg/sftp"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/vertextoedge/himawari-fetch/internal/domain"
	"github.com/vertextoedge/himawari-fetch/internal/port"
)

// Config contains the connection settings for the SFTP server
type Config struct {
	Host           string
	Port           int
	Username       string
	Password       string
	PrivateKeyPath string
	KnownHostsPath string
	DialTimeout    time.Duration
	MaxPacket      int // 0 keeps the library default of 32KB
}

// Factory opens authenticated SFTP sessions
type Factory struct {
	addr      string
	sshConfig *ssh.ClientConfig
	maxPacket int
	timeout   time.Duration
	logger    *zap.Logger
}

// Ensure Factory implements port.SessionFactory
var _ port.SessionFactory = (*Factory)(nil)

// NewFactory validates cfg and prepares the SSH client configuration.
// Credentials and host keys are loaded once here, not per session.
func NewFactory(cfg Config, logger *zap.Logger) (*Factory, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Host == "" || cfg.Username == "" {
		return nil, fmt.Errorf("%w: host and username are required", domain.ErrInvalidInput)
	}
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 30 * time.Second
	}

	auth, err := authMethods(cfg)
	if err != nil {
		return nil, err
	}

	hostKeyCallback, err := hostKeyCallback(cfg, logger)
	if err != nil {
		return nil, err
	}

	return &Factory{
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		sshConfig: &ssh.ClientConfig{
			User:            cfg.Username,
			Auth:            auth,
			HostKeyCallback: hostKeyCallback,
			Timeout:         cfg.DialTimeout,
		},
		maxPacket: cfg.MaxPacket,
		timeout:   cfg.DialTimeout,
		logger:    logger,
	}, nil
}

func authMethods(cfg Config) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if cfg.PrivateKeyPath != "" {
		pem, err := os.ReadFile(cfg.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read private key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if cfg.Password != "" {
		methods = append(methods, ssh.Password(cfg.Password))
	}

	if len(methods) == 0 {
		return nil, fmt.Errorf("%w: password or private key is required", domain.ErrInvalidInput)
	}
	return methods, nil
}

func hostKeyCallback(cfg Config, logger *zap.Logger) (ssh.HostKeyCallback, error) {
	if cfg.KnownHostsPath == "" {
		logger.Warn("known_hosts not configured, host key will not be verified",
			zap.String("host", cfg.Host))
		return ssh.InsecureIgnoreHostKey(), nil
	}

	callback, err := knownhosts.New(cfg.KnownHostsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load known_hosts: %w", err)
	}
	return callback, nil
}

// Addr returns host:port of the server
func (f *Factory) Addr() string {
	return f.addr
}

// Open dials the server and starts the SFTP subsystem
func (f *Factory) Open(ctx context.Context) (port.RemoteSession, error) {
	dialer := &net.Dialer{Timeout: f.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", f.addr)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to dial %s: %w", domain.ErrSessionUnavailable, f.addr, err)
	}

	// the handshake has no context of its own
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	} else {
		conn.SetDeadline(time.Now().Add(f.timeout))
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, f.addr, f.sshConfig)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: ssh handshake with %s failed: %w", domain.ErrSessionUnavailable, f.addr, err)
	}
	conn.SetDeadline(time.Time{})

	sshClient := ssh.NewClient(sshConn, chans, reqs)

	var opts []pkgsftp.ClientOption
	if f.maxPacket > 0 {
		opts = append(opts, pkgsftp.MaxPacket(f.maxPacket))
	}
	client, err := pkgsftp.NewClient(sshClient, opts...)
	if err != nil {
		sshClient.Close()
		return nil, fmt.Errorf("%w: failed to start sftp subsystem: %w", domain.ErrSessionUnavailable, err)
	}

	f.logger.Debug("sftp session opened", zap.String("addr", f.addr))
	return NewSession(client, sshClient, f.logger), nil
}
