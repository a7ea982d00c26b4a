package errors

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"os"
	"strings"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/randalmurphal/blueprint/auth"
	"github.com/randalmurphal/blueprint/config"
	bphttp "github.com/randalmurphal/blueprint/http"
	"github.com/randalmurphal/blueprint/publish"
)

// MongoDB server error codes.
const (
	mongoUnauthorized        = 13
	mongoAuthenticationError = 18
)

// IsAuthError reports whether credentials were missing or refused.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range []error{
		ErrCredentialsRejected,
		bphttp.ErrUnauthorized,
		publish.ErrUnauthorized,
		auth.ErrInvalidToken,
		auth.ErrTokenExpired,
		auth.ErrInvalidAPIKey,
		auth.ErrNoCredentials,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	if code, ok := mongoCode(err); ok && code == mongoAuthenticationError {
		return true
	}
	if code, ok := amqpCode(err); ok && code == amqp.AccessRefused {
		return true
	}
	// The driver reports handshake failures as plain text inside a
	// connection error.
	return strings.Contains(strings.ToLower(err.Error()), "authentication failed")
}

// IsPermissionError reports whether authenticated access was refused.
func IsPermissionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPermissionDenied) || errors.Is(err, bphttp.ErrForbidden) ||
		errors.Is(err, auth.ErrInsufficientScope) || errors.Is(err, os.ErrPermission) {
		return true
	}
	code, ok := mongoCode(err)
	return ok && code == mongoUnauthorized
}

// IsTLSError reports certificate verification failures.
func IsTLSError(err error) bool {
	if err == nil {
		return false
	}
	var unknown x509.UnknownAuthorityError
	var hostname x509.HostnameError
	var invalid x509.CertificateInvalidError
	var verify *tls.CertificateVerificationError
	return errors.As(err, &unknown) || errors.As(err, &hostname) ||
		errors.As(err, &invalid) || errors.As(err, &verify)
}

// IsTimeout reports deadline and I/O timeouts.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) || mongo.IsTimeout(err) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// IsConnectionError reports whether a collaborator was unreachable,
// including certificate problems and timeouts.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConnectionFailed) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, amqp.ErrClosed) || mongo.IsNetworkError(err) {
		return true
	}
	if IsTLSError(err) || IsTimeout(err) {
		return true
	}
	var op *net.OpError
	var dns *net.DNSError
	if errors.As(err, &op) || errors.As(err, &dns) {
		return true
	}
	// Topology errors from the driver carry no typed cause.
	return strings.Contains(err.Error(), "server selection error")
}

// IsConfigError reports a settings validation failure.
func IsConfigError(err error) bool {
	return err != nil && (errors.Is(err, ErrInvalidConfig) || errors.Is(err, config.ErrInvalid))
}

func mongoCode(err error) (int32, bool) {
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		return ce.Code, true
	}
	return 0, false
}

func amqpCode(err error) (int, bool) {
	var ae *amqp.Error
	if errors.As(err, &ae) {
		return ae.Code, true
	}
	return 0, false
}
