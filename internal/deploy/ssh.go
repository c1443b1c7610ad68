// Copyright (c) 2026 google-sheets authors
// google-sheets - service and deployment tooling
// This source code is licensed under the MIT license found in the LICENSE file.

package deploy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.org/x/term"

	"github.com/gsheets-app/google-sheets/internal/logging"
)

// PassphraseEnv holds the passphrase of an encrypted key file.
const PassphraseEnv = "GSHEETS_SSH_PASSPHRASE"

// Remote is a connection to the Docker host.
type Remote interface {
	// Run executes cmd in a remote shell and returns its combined output.
	Run(ctx context.Context, cmd string, stdin io.Reader) (string, error)
	// Upload copies local to the remote path, replacing it atomically.
	Upload(ctx context.Context, local, remote string) error
	Close() error
}

// Deployer handles the connection and deployment to a remote host.
type Deployer struct {
	client *ssh.Client
	sftp   *sftp.Client
}

// package-level hooks replaced in tests.
var (
	sshDial = func(network, addr string, cfg *ssh.ClientConfig) (*ssh.Client, error) {
		return ssh.Dial(network, addr, cfg)
	}
	newSftpClient  = func(c *ssh.Client) (*sftp.Client, error) { return sftp.NewClient(c) }
	sshAgentGetter = getSSHAgent
	readPassphrase = promptPassphrase
)

// Dial connects with the key file first and falls back to the SSH agent
// when the key is rejected.
func Dial(ctx context.Context, cfg Config) (*Deployer, error) {
	cfg = cfg.withDefaults()

	hostKeyCallback, err := hostKeyCallback(cfg.KnownHostsFile)
	if err != nil {
		return nil, err
	}

	addr := hostAddr(cfg.Host)
	timeout := 10 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d < timeout {
			timeout = d
		}
	}

	var client *ssh.Client
	var finalErr error

	signer, err := loadSigner(cfg.KeyFile)
	if err != nil {
		return nil, err
	}

	client, err = sshDial("tcp", addr, &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	})
	if err == nil {
		return newDeployer(client)
	}
	// Anything other than a rejected key fails fast.
	if !strings.Contains(err.Error(), "unable to authenticate") {
		return nil, fmt.Errorf("connection with key file failed: %w", err)
	}
	finalErr = err

	agentClient := sshAgentGetter()
	if agentClient == nil {
		return nil, fmt.Errorf("key file authentication failed, and no SSH agent available for fallback: %w", finalErr)
	}
	logging.Warnf("key %s rejected by %s, trying ssh agent", cfg.KeyFile, cfg.Host)

	client, err = sshDial("tcp", addr, &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeysCallback(agentClient.Signers)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("connection with ssh agent failed: %w", err)
	}
	return newDeployer(client)
}

func newDeployer(client *ssh.Client) (*Deployer, error) {
	sftpClient, err := newSftpClient(client)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to create sftp client: %w", err)
	}
	return &Deployer{client: client, sftp: sftpClient}, nil
}

// hostAddr adds port 22 if not specified.
func hostAddr(host string) string {
	if _, _, err := net.SplitHostPort(host); err != nil {
		return net.JoinHostPort(host, "22")
	}
	return host
}

// hostKeyCallback verifies against knownHostsFile. Without one every host
// key is accepted and a warning is logged.
func hostKeyCallback(knownHostsFile string) (ssh.HostKeyCallback, error) {
	if knownHostsFile == "" {
		logging.Warnf("no known_hosts file configured, the host key will not be verified")
		return ssh.InsecureIgnoreHostKey(), nil
	}
	cb, err := knownhosts.New(knownHostsFile)
	if err != nil {
		return nil, fmt.Errorf("load known hosts %s: %w", knownHostsFile, err)
	}
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := cb(hostname, remote, key)
		var keyErr *knownhosts.KeyError
		if errors.As(err, &keyErr) {
			if len(keyErr.Want) == 0 {
				return fmt.Errorf("unknown host key for %s. run 'google-sheets deploy trust-host' to add it", hostname)
			}
			return fmt.Errorf("!!! HOST KEY MISMATCH FOR %s !!!\nRemote key presented: %s\nThis could be a man-in-the-middle attack",
				hostname, strings.TrimSpace(string(ssh.MarshalAuthorizedKey(key))))
		}
		return err
	}, nil
}

// loadSigner parses the key file, asking for a passphrase when the key is
// encrypted.
func loadSigner(keyFile string) (ssh.Signer, error) {
	pemBytes, err := os.ReadFile(keyFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrKeyFileMissing, keyFile)
		}
		return nil, fmt.Errorf("read key file: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(pemBytes)
	if err == nil {
		return signer, nil
	}
	var missing *ssh.PassphraseMissingError
	if !errors.As(err, &missing) {
		return nil, fmt.Errorf("unable to parse private key: %w", err)
	}

	passphrase, err := readPassphrase(keyFile)
	if err != nil {
		return nil, err
	}
	defer func() {
		for i := range passphrase {
			passphrase[i] = 0
		}
	}()
	signer, err = ssh.ParsePrivateKeyWithPassphrase(pemBytes, passphrase)
	if err != nil {
		return nil, fmt.Errorf("unable to decrypt private key: %w", err)
	}
	return signer, nil
}

// promptPassphrase reads the passphrase from the environment or, on a
// terminal, from the user.
func promptPassphrase(keyFile string) ([]byte, error) {
	if v := os.Getenv(PassphraseEnv); v != "" {
		return []byte(v), nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("key %s is encrypted: set %s", keyFile, PassphraseEnv)
	}
	fmt.Fprintf(os.Stderr, "Passphrase for %s: ", keyFile)
	p, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("read passphrase: %w", err)
	}
	return p, nil
}

// Run executes cmd in a new session. Cancelling ctx closes the session.
func (d *Deployer) Run(ctx context.Context, cmd string, stdin io.Reader) (string, error) {
	session, err := d.client.NewSession()
	if err != nil {
		return "", fmt.Errorf("open session: %w", err)
	}
	defer session.Close()

	var out bytes.Buffer
	session.Stdout = &out
	session.Stderr = &out
	session.Stdin = stdin

	done := make(chan error, 1)
	go func() { done <- session.Run(cmd) }()
	select {
	case err := <-done:
		return out.String(), err
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGTERM)
		_ = session.Close()
		<-done
		return out.String(), ctx.Err()
	}
}

// Upload copies local to remote through a temporary sibling and renames it
// into place. It only uses SFTP so it also works for restricted accounts.
func (d *Deployer) Upload(ctx context.Context, local, remote string) error {
	src, err := os.Open(local)
	if err != nil {
		return fmt.Errorf("open %s: %w", local, err)
	}
	defer src.Close()

	dir := path.Dir(remote)
	if err := d.sftp.MkdirAll(dir); err != nil {
		return fmt.Errorf("failed to create remote directory %s: %w", dir, err)
	}

	tmpPath := path.Join(dir, fmt.Sprintf(".%s.%d", path.Base(remote), time.Now().UnixNano()))
	f, err := d.sftp.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary file on remote: %w", err)
	}
	if _, err := io.Copy(f, readerWithContext{ctx: ctx, r: src}); err != nil {
		f.Close()
		_ = d.sftp.Remove(tmpPath)
		return fmt.Errorf("failed to write to temporary file on remote: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = d.sftp.Remove(tmpPath)
		return fmt.Errorf("failed to close temporary file on remote: %w", err)
	}
	if err := d.sftp.Chmod(tmpPath, 0o644); err != nil {
		_ = d.sftp.Remove(tmpPath)
		return fmt.Errorf("failed to chmod temporary file: %w", err)
	}
	if err := d.sftp.PosixRename(tmpPath, remote); err != nil {
		// Servers without the posix-rename extension refuse to overwrite.
		_ = d.sftp.Remove(remote)
		if err := d.sftp.Rename(tmpPath, remote); err != nil {
			_ = d.sftp.Remove(tmpPath)
			return fmt.Errorf("failed to atomically rename %s: %w", remote, err)
		}
	}
	return nil
}

// Close closes the underlying SSH and SFTP clients.
func (d *Deployer) Close() error {
	var err error
	if d.sftp != nil {
		err = d.sftp.Close()
	}
	if d.client != nil {
		if cerr := d.client.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

type readerWithContext struct {
	ctx context.Context
	r   io.Reader
}

func (r readerWithContext) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

const probeMarker = "google-sheets: retrieved host key"

// ScanHostKey connects to host just to retrieve its public key.
func ScanHostKey(host string) (ssh.PublicKey, error) {
	keyChan := make(chan ssh.PublicKey, 1)

	config := &ssh.ClientConfig{
		// No authentication is needed, only the start of the handshake.
		User: "google-sheets-probe",
		HostKeyCallback: func(hostname string, remote net.Addr, key ssh.PublicKey) error {
			keyChan <- key
			return errors.New(probeMarker)
		},
		Timeout: 5 * time.Second,
	}

	_, err := sshDial("tcp", hostAddr(host), config)
	if err != nil {
		if strings.Contains(err.Error(), probeMarker) {
			return <-keyChan, nil
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", host, err)
	}
	return nil, fmt.Errorf("ssh.Dial succeeded unexpectedly, could not retrieve key")
}

// TrustHost appends the host key of host to knownHostsFile.
func TrustHost(host, knownHostsFile string, key ssh.PublicKey) error {
	if err := os.MkdirAll(filepath.Dir(knownHostsFile), 0o700); err != nil {
		return fmt.Errorf("create known hosts dir: %w", err)
	}
	f, err := os.OpenFile(knownHostsFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open known hosts: %w", err)
	}
	defer f.Close()
	line := knownhosts.Line([]string{knownhosts.Normalize(hostAddr(host))}, key)
	if _, err := fmt.Fprintln(f, line); err != nil {
		return fmt.Errorf("write known hosts: %w", err)
	}
	return nil
}

var _ Remote = (*Deployer)(nil)
