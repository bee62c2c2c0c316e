package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"

	"github.com/emersion/go-imap/client"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/mailsignal/mailsignal/internal/enum"
	apperrors "github.com/mailsignal/mailsignal/internal/errors"
	"github.com/mailsignal/mailsignal/internal/models"
	"github.com/mailsignal/mailsignal/internal/tracing"
)

// dialAndLogin establishes and authenticates an IMAP session. The dial
// and the login carry separate timeouts; exceeding either fails this
// attempt without retry.
func (s *ConnectionManager) dialAndLogin(ctx context.Context, account *models.Account) (*client.Client, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ConnectionManager.dialAndLogin")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("server", account.ImapServer)
	span.SetTag("port", account.ImapPort)
	span.SetTag("tls", account.Security == enum.MailSecurityTLS)

	serverAddr := fmt.Sprintf("%s:%d", account.ImapServer, account.ImapPort)

	dialer := &net.Dialer{
		Timeout:   s.cfg.ConnectTimeout,
		KeepAlive: s.cfg.ConnectTimeout,
	}

	var c *client.Client
	var err error

	if account.Security == enum.MailSecurityTLS {
		tlsConfig := &tls.Config{
			ServerName: account.ImapServer,
		}
		c, err = client.DialWithDialerTLS(dialer, serverAddr, tlsConfig)
	} else {
		c, err = client.DialWithDialer(dialer, serverAddr)
	}

	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			err = errors.Wrapf(apperrors.ErrConnectionTimeout, "dial %s: %v", serverAddr, err)
		} else {
			err = errors.Wrapf(err, "failed to connect to %s", serverAddr)
		}
		tracing.TraceErr(span, err)
		return nil, err
	}

	c.Timeout = s.cfg.ConnectTimeout
	caps, err := c.Capability()
	if err != nil {
		c.Logout()
		err = errors.Wrap(err, "failed to get capabilities")
		tracing.TraceErr(span, err)
		return nil, err
	}
	s.log.Debugf("[%s] server capabilities: %v", account.ID, caps)

	c.Timeout = s.cfg.AuthTimeout
	err = c.Login(account.Username, account.Password)
	if err != nil {
		c.Logout()
		if netErr, ok := errors.Cause(err).(net.Error); ok && netErr.Timeout() {
			err = errors.Wrapf(apperrors.ErrConnectionTimeout, "login as %s: %v", account.Username, err)
		} else {
			err = errors.Wrapf(apperrors.ErrAuthenticationFailed, "login as %s: %v", account.Username, err)
		}
		tracing.TraceErr(span, err)
		return nil, err
	}

	// No timeout for normal operations; fetches set their own
	c.Timeout = 0
	return c, nil
}
