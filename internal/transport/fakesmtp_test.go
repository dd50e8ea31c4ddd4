package transport

import (
	"bufio"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"fmt"
	"math/big"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// smtpSession is what the fake relay saw during one connection.
type smtpSession struct {
	TLS      bool
	AuthUser string
	AuthPass string
	From     string
	To       []string
	Data     string
}

// fakeSMTP is a minimal relay speaking just enough ESMTP for net/smtp.
type fakeSMTP struct {
	ln  net.Listener
	tls *tls.Config

	offerSTARTTLS bool
	rejectRcpt    string

	mu       sync.Mutex
	sessions []*smtpSession
}

type fakeSMTPOption func(*fakeSMTP)

// withSTARTTLS advertises STARTTLS.
func withSTARTTLS() fakeSMTPOption {
	return func(f *fakeSMTP) { f.offerSTARTTLS = true }
}

// withImplicitTLS wraps the listener in TLS.
func withImplicitTLS() fakeSMTPOption {
	return func(f *fakeSMTP) { f.ln = tls.NewListener(f.ln, f.tls) }
}

// withRejectedRecipient answers 550 for RCPT TO of addr.
func withRejectedRecipient(addr string) fakeSMTPOption {
	return func(f *fakeSMTP) { f.rejectRcpt = addr }
}

func newFakeSMTP(t *testing.T, opts ...fakeSMTPOption) *fakeSMTP {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	f := &fakeSMTP{ln: ln, tls: selfSignedTLS(t)}
	for _, opt := range opts {
		opt(f)
	}
	t.Cleanup(func() { _ = f.ln.Close() })

	go f.serve()
	return f
}

func (f *fakeSMTP) port() int {
	return f.ln.Addr().(*net.TCPAddr).Port
}

func (f *fakeSMTP) lastSession(t *testing.T) *smtpSession {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sessions)
	return f.sessions[len(f.sessions)-1]
}

func (f *fakeSMTP) sessionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

func (f *fakeSMTP) serve() {
	for {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}
		go f.handle(conn)
	}
}

func (f *fakeSMTP) handle(conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(10 * time.Second))

	sess := &smtpSession{}
	_, sess.TLS = conn.(*tls.Conn)
	f.mu.Lock()
	f.sessions = append(f.sessions, sess)
	f.mu.Unlock()

	r := bufio.NewReader(conn)
	reply := func(format string, args ...any) {
		_, _ = fmt.Fprintf(conn, format+"\r\n", args...)
	}

	reply("220 fake.test ESMTP")
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		verb := strings.ToUpper(strings.SplitN(line, " ", 2)[0])

		switch verb {
		case "EHLO":
			f.mu.Lock()
			secure := sess.TLS
			f.mu.Unlock()
			reply("250-fake.test")
			if f.offerSTARTTLS && !secure {
				reply("250-STARTTLS")
			}
			reply("250 AUTH PLAIN")
		case "HELO", "NOOP", "RSET":
			reply("250 ok")
		case "STARTTLS":
			reply("220 ready")
			tlsConn := tls.Server(conn, f.tls)
			if err := tlsConn.Handshake(); err != nil {
				return
			}
			conn = tlsConn
			r = bufio.NewReader(conn)
			f.mu.Lock()
			sess.TLS = true
			f.mu.Unlock()
		case "AUTH":
			fields := strings.Fields(line)
			if len(fields) != 3 || !strings.EqualFold(fields[1], "PLAIN") {
				reply("504 unsupported")
				continue
			}
			raw, err := base64.StdEncoding.DecodeString(fields[2])
			if err != nil {
				reply("501 bad encoding")
				continue
			}
			parts := strings.Split(string(raw), "\x00")
			if len(parts) != 3 {
				reply("501 bad credentials")
				continue
			}
			f.mu.Lock()
			sess.AuthUser, sess.AuthPass = parts[1], parts[2]
			f.mu.Unlock()
			reply("235 authenticated")
		case "MAIL":
			f.mu.Lock()
			sess.From = angleAddr(line)
			f.mu.Unlock()
			reply("250 ok")
		case "RCPT":
			addr := angleAddr(line)
			if addr == f.rejectRcpt {
				reply("550 no such user")
				continue
			}
			f.mu.Lock()
			sess.To = append(sess.To, addr)
			f.mu.Unlock()
			reply("250 ok")
		case "DATA":
			reply("354 end with .")
			var b strings.Builder
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				l = strings.TrimRight(l, "\r\n")
				if l == "." {
					break
				}
				b.WriteString(strings.TrimPrefix(l, "."))
				b.WriteString("\n")
			}
			f.mu.Lock()
			sess.Data = b.String()
			f.mu.Unlock()
			reply("250 queued")
		case "QUIT":
			reply("221 bye")
			return
		default:
			reply("502 not implemented")
		}
	}
}

func angleAddr(line string) string {
	start := strings.Index(line, "<")
	end := strings.Index(line, ">")
	if start < 0 || end < start {
		return ""
	}
	return line[start+1 : end]
}

func selfSignedTLS(t *testing.T) *tls.Config {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "fake.test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	return &tls.Config{
		Certificates: []tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: key}},
		MinVersion:   tls.VersionTLS12,
	}
}
