package sat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PackageState is the remote build state reported for a pending request
type PackageState string

const (
	PackagePending PackageState = "pending"
	PackageReady   PackageState = "ready"
	PackageExpired PackageState = "expired"
)

// Sentinel errors returned by PackageClient implementations. The retry
// policy classifies them; anything unrecognized is treated as transient.
var (
	// ErrNoDocuments means the remote service has no documents for the range
	ErrNoDocuments = errors.New("no documents available for the requested range")
	// ErrPackageExpired means the package retention window elapsed before fetch
	ErrPackageExpired = errors.New("remote package has expired")
	// ErrRequestRejected means the remote service rejected the request outright
	ErrRequestRejected = errors.New("remote service rejected the request")
	// ErrInvalidCredentials means the fiscal certificate was refused
	ErrInvalidCredentials = errors.New("fiscal credentials were rejected")
)

// ThrottleError is returned when the remote service imposes a quota wait
type ThrottleError struct {
	Kind ThrottleKind
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("remote service throttled: %s", e.Kind)
}

// NewThrottleError creates a throttle error of the given kind
func NewThrottleError(kind ThrottleKind) *ThrottleError {
	return &ThrottleError{Kind: kind}
}

// DownloadCriteria describes one remote package request
type DownloadCriteria struct {
	Direction   Direction
	PeriodStart time.Time
	PeriodEnd   time.Time
}

// RawDocument is one fiscal document as extracted from a fetched package
type RawDocument struct {
	FiscalUUID  string
	IssuerRFC   string
	IssuerName  string
	ReceiverRFC string
	IssuedAt    time.Time
	Total       decimal.Decimal
	XML         string
}

// PackageResult is the outcome of fetching a ready package
type PackageResult struct {
	// Documents holds the entries that parsed successfully
	Documents []RawDocument
	// Unreadable counts entries that could not be parsed from the package
	Unreadable int
	// TotalDocuments is the document count declared by the remote service
	TotalDocuments int
}

// PackageClient is the port to the tax authority's bulk download service.
// Implementations handle authentication, signing and transport; callers
// only see the three protocol steps.
type PackageClient interface {
	// RequestPackage asks the remote service to build a package and returns
	// the opaque request handle
	RequestPackage(ctx context.Context, criteria DownloadCriteria) (string, error)
	// PollPackage checks the build state of a previously requested package
	PollPackage(ctx context.Context, requestID string) (PackageState, error)
	// FetchPackage downloads and decodes a ready package
	FetchPackage(ctx context.Context, requestID string) (*PackageResult, error)
}

// Credentials holds the fiscal certificate material used to sign requests
type Credentials struct {
	RFC         string
	Certificate []byte
	PrivateKey  []byte
	Passphrase  string
}

// CredentialProvider resolves the fiscal credentials for outbound requests
type CredentialProvider interface {
	Credentials(ctx context.Context) (*Credentials, error)
}
