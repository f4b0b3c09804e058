package testutil

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// ExecHandler answers one exec request. Returning sendStatus=false closes the
// channel without an exit-status message.
type ExecHandler func(cmd string, stdout, stderr io.Writer) (exitCode int, sendStatus bool)

type SSHServerOptions struct {
	// Password, when set, is accepted for any user.
	Password string
	// AuthorizedKeys are accepted for any user.
	AuthorizedKeys []ssh.PublicKey
	// NoClientAuth skips authentication entirely.
	NoClientAuth bool
	// HandshakeDelay stalls each accepted connection before the server side of
	// the handshake starts.
	HandshakeDelay time.Duration
	Exec           ExecHandler
}

// SSHServer is an in-process SSH server on 127.0.0.1 serving exec, pty shells
// (which echo their input) and an in-memory sftp subsystem shared by all sessions.
type SSHServer struct {
	Addr    string
	Host    string
	Port    int
	HostKey ssh.PublicKey

	config     *ssh.ServerConfig
	opts       SSHServerOptions
	listener   net.Listener
	sftpFS     sftp.Handlers
	connsMu    sync.Mutex
	conns      []net.Conn
	accepted   atomic.Int32
	handshakes atomic.Int32
	done       chan struct{}
}

// TB is the part of testing.TB the server needs. GinkgoT() satisfies it too.
type TB interface {
	Helper()
	Fatalf(format string, args ...any)
	Cleanup(func())
}

// StartSSHServer starts a server that is shut down when the test ends.
func StartSSHServer(t TB, opts SSHServerOptions) *SSHServer {
	t.Helper()

	hostKey, err := GenerateKeyPair("")
	if err != nil {
		t.Fatalf("generate host key: %v", err)
	}

	if opts.Exec == nil {
		opts.Exec = DefaultExecHandler
	}

	config := &ssh.ServerConfig{NoClientAuth: opts.NoClientAuth}
	if opts.Password != "" {
		config.PasswordCallback = func(_ ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
			if string(password) == opts.Password {
				return &ssh.Permissions{}, nil
			}
			return nil, fmt.Errorf("password rejected")
		}
	}
	if len(opts.AuthorizedKeys) > 0 {
		config.PublicKeyCallback = func(_ ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			for _, allowed := range opts.AuthorizedKeys {
				if ssh.FingerprintSHA256(key) == ssh.FingerprintSHA256(allowed) {
					return &ssh.Permissions{}, nil
				}
			}
			return nil, fmt.Errorf("unknown public key")
		}
	}
	config.AddHostKey(hostKey.Signer)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	host, portStr, _ := net.SplitHostPort(listener.Addr().String())
	port, _ := strconv.Atoi(portStr)

	s := &SSHServer{
		Addr:     listener.Addr().String(),
		Host:     host,
		Port:     port,
		HostKey:  hostKey.PublicKey,
		config:   config,
		opts:     opts,
		listener: listener,
		sftpFS:   sftp.InMemHandler(),
		done:     make(chan struct{}),
	}
	go s.serve()
	t.Cleanup(s.Close)
	return s
}

// Accepted is the number of TCP connections the server has accepted.
func (s *SSHServer) Accepted() int {
	return int(s.accepted.Load())
}

// Handshakes is the number of connections that completed the SSH handshake.
func (s *SSHServer) Handshakes() int {
	return int(s.handshakes.Load())
}

// KnownHostsLine is a known_hosts entry trusting this server's host key.
func (s *SSHServer) KnownHostsLine() string {
	return knownhosts.Line([]string{s.Addr}, s.HostKey) + "\n"
}

func (s *SSHServer) Close() {
	s.listener.Close()
	s.connsMu.Lock()
	for _, c := range s.conns {
		c.Close()
	}
	s.connsMu.Unlock()
	<-s.done
}

func (s *SSHServer) serve() {
	defer close(s.done)
	for {
		netConn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.accepted.Add(1)
		s.connsMu.Lock()
		s.conns = append(s.conns, netConn)
		s.connsMu.Unlock()
		go s.handleConn(netConn)
	}
}

func (s *SSHServer) handleConn(netConn net.Conn) {
	if s.opts.HandshakeDelay > 0 {
		time.Sleep(s.opts.HandshakeDelay)
	}

	sshConn, chans, reqs, err := ssh.NewServerConn(netConn, s.config)
	if err != nil {
		netConn.Close()
		return
	}
	defer sshConn.Close()
	s.handshakes.Add(1)

	go func() {
		for req := range reqs {
			if req.WantReply {
				req.Reply(true, nil)
			}
		}
	}()

	for newChan := range chans {
		if newChan.ChannelType() != "session" {
			newChan.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		ch, requests, err := newChan.Accept()
		if err != nil {
			continue
		}
		go s.handleSession(ch, requests)
	}
}

func sendExitStatus(ch ssh.Channel, code int) {
	payload := ssh.Marshal(struct{ Status uint32 }{uint32(code)})
	ch.SendRequest("exit-status", false, payload)
}

func (s *SSHServer) handleSession(ch ssh.Channel, requests <-chan *ssh.Request) {
	defer ch.Close()

	for req := range requests {
		switch req.Type {
		case "exec":
			var payload struct{ Command string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
				req.Reply(false, nil)
				continue
			}
			req.Reply(true, nil)

			code, sendStatus := s.opts.Exec(payload.Command, ch, ch.Stderr())
			if sendStatus {
				sendExitStatus(ch, code)
			}
			return

		case "subsystem":
			var payload struct{ Name string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil || payload.Name != "sftp" {
				req.Reply(false, nil)
				continue
			}
			req.Reply(true, nil)

			srv := sftp.NewRequestServer(ch, s.sftpFS)
			_ = srv.Serve()
			_ = srv.Close()
			return

		case "pty-req", "window-change", "env":
			if req.WantReply {
				req.Reply(true, nil)
			}

		case "shell":
			req.Reply(true, nil)
			go func() {
				for r := range requests {
					if r.WantReply {
						r.Reply(true, nil)
					}
				}
			}()
			_, _ = io.Copy(ch, ch)
			sendExitStatus(ch, 0)
			return

		default:
			if req.WantReply {
				req.Reply(false, nil)
			}
		}
	}
}

// DefaultExecHandler understands a handful of shell-like commands:
//
//	echo ARGS        ARGS on stdout
//	warn ARGS        ARGS on stderr
//	exit N           exit status N
//	no-status        closes without an exit status
//
// Anything else fails with status 127 the way a shell would.
func DefaultExecHandler(cmd string, stdout, stderr io.Writer) (int, bool) {
	name, args, _ := strings.Cut(strings.TrimSpace(cmd), " ")
	switch name {
	case "echo":
		fmt.Fprintln(stdout, args)
		return 0, true
	case "warn":
		fmt.Fprintln(stderr, args)
		return 0, true
	case "exit":
		code, err := strconv.Atoi(strings.TrimSpace(args))
		if err != nil {
			fmt.Fprintf(stderr, "exit: %s: numeric argument required\n", args)
			return 2, true
		}
		return code, true
	case "no-status":
		return 0, false
	case "":
		return 0, true
	default:
		fmt.Fprintf(stderr, "sh: %s: command not found\n", name)
		return 127, true
	}
}
