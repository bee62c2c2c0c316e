package enum

type ConnectionState string

const (
	ConnectionDisconnected ConnectionState = "disconnected"
	ConnectionConnecting   ConnectionState = "connecting"
	ConnectionConnected    ConnectionState = "connected"
	ConnectionDegraded     ConnectionState = "degraded"
)

func (s ConnectionState) String() string {
	return string(s)
}

type MailSecurity string

const (
	MailSecurityNone     MailSecurity = "none"
	MailSecurityTLS      MailSecurity = "tls"
	MailSecurityStartTLS MailSecurity = "startTLS"
)

func (s MailSecurity) String() string {
	return string(s)
}
