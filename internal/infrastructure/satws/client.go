package satws

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mxsuite/backend/internal/domain/sat"
)

// maxResponseSize bounds what we read from the remote service (50MB,
// packages are base64-encoded ZIP archives)
const maxResponseSize = 50 * 1024 * 1024

const (
	pathRequest  = "/api/v1/solicitud"
	pathVerify   = "/api/v1/verificacion"
	pathDownload = "/api/v1/descarga"
)

// Client talks to the tax authority's bulk download web service.
// It implements the three protocol steps and maps the service's status
// codes to the domain's sentinel errors.
type Client struct {
	config      *Config
	httpClient  *http.Client
	credentials sat.CredentialProvider
	logger      *zap.Logger

	// packageIDs caches the package list per remote request so a fetch
	// right after a successful poll avoids a second verification call
	mu         sync.Mutex
	packageIDs map[string]packageInfo
}

type packageInfo struct {
	ids   []string
	total int
}

// NewClient creates a new bulk download service client
func NewClient(config *Config, credentials sat.CredentialProvider, logger *zap.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := config.RequestTimeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		config:      config,
		httpClient:  &http.Client{Timeout: timeout},
		credentials: credentials,
		logger:      logger.Named("satws"),
		packageIDs:  make(map[string]packageInfo),
	}, nil
}

// RequestPackage implements sat.PackageClient
func (c *Client) RequestPackage(ctx context.Context, criteria sat.DownloadCriteria) (string, error) {
	envelope := requestEnvelope{
		RFC:         c.config.RFC,
		DateFrom:    criteria.PeriodStart.Format("2006-01-02T00:00:00"),
		DateTo:      criteria.PeriodEnd.Format("2006-01-02T23:59:59"),
		RequestType: "CFDI",
	}
	// The requester's RFC goes on the side matching the direction
	if criteria.Direction == sat.DirectionIssued {
		envelope.IssuerRFC = c.config.RFC
	} else {
		envelope.ReceiverRFC = c.config.RFC
	}

	var reply requestResponse
	if err := c.post(ctx, pathRequest, envelope, &reply); err != nil {
		return "", err
	}
	if err := mapStatusCode(reply.Code, reply.Message); err != nil {
		return "", err
	}
	if reply.RequestID == "" {
		return "", fmt.Errorf("satws: accepted request carries no request ID")
	}

	c.logger.Debug("package requested",
		zap.String("remote_request_id", reply.RequestID),
		zap.String("direction", criteria.Direction.String()))

	return reply.RequestID, nil
}

// PollPackage implements sat.PackageClient
func (c *Client) PollPackage(ctx context.Context, requestID string) (sat.PackageState, error) {
	reply, err := c.verify(ctx, requestID)
	if err != nil {
		return "", err
	}

	switch reply.State {
	case stateAccepted, stateInProgress:
		return sat.PackagePending, nil
	case stateFinished:
		c.mu.Lock()
		c.packageIDs[requestID] = packageInfo{ids: reply.PackageIDs, total: reply.Documents}
		c.mu.Unlock()
		return sat.PackageReady, nil
	case stateExpired:
		return sat.PackageExpired, nil
	case stateFailed, stateRejected:
		return "", fmt.Errorf("%w: %s", sat.ErrRequestRejected, reply.Message)
	default:
		return "", fmt.Errorf("satws: unknown request state %d", reply.State)
	}
}

// FetchPackage implements sat.PackageClient
func (c *Client) FetchPackage(ctx context.Context, requestID string) (*sat.PackageResult, error) {
	c.mu.Lock()
	info, ok := c.packageIDs[requestID]
	c.mu.Unlock()
	if !ok {
		// Fetch without a prior poll in this process; re-verify
		reply, err := c.verify(ctx, requestID)
		if err != nil {
			return nil, err
		}
		if reply.State == stateExpired {
			return nil, sat.ErrPackageExpired
		}
		if reply.State != stateFinished {
			return nil, fmt.Errorf("satws: package is not ready (state %d)", reply.State)
		}
		info = packageInfo{ids: reply.PackageIDs, total: reply.Documents}
	}

	result := &sat.PackageResult{TotalDocuments: info.total}
	for _, packageID := range info.ids {
		archive, err := c.download(ctx, packageID)
		if err != nil {
			return nil, err
		}
		if err := c.extract(archive, result); err != nil {
			return nil, err
		}
	}

	c.mu.Lock()
	delete(c.packageIDs, requestID)
	c.mu.Unlock()

	c.logger.Info("package fetched",
		zap.String("remote_request_id", requestID),
		zap.Int("documents", len(result.Documents)),
		zap.Int("unreadable", result.Unreadable))

	return result, nil
}

func (c *Client) verify(ctx context.Context, requestID string) (*verifyResponse, error) {
	envelope := verifyEnvelope{RFC: c.config.RFC, RequestID: requestID}
	var reply verifyResponse
	if err := c.post(ctx, pathVerify, envelope, &reply); err != nil {
		return nil, err
	}
	if err := mapStatusCode(reply.Code, reply.Message); err != nil {
		return nil, err
	}
	return &reply, nil
}

func (c *Client) download(ctx context.Context, packageID string) ([]byte, error) {
	envelope := downloadEnvelope{RFC: c.config.RFC, PackageID: packageID}
	var reply downloadResponse
	if err := c.post(ctx, pathDownload, envelope, &reply); err != nil {
		return nil, err
	}
	if err := mapStatusCode(reply.Code, reply.Message); err != nil {
		return nil, err
	}

	archive, err := base64.StdEncoding.DecodeString(reply.Package)
	if err != nil {
		return nil, fmt.Errorf("satws: failed to decode package %s: %w", packageID, err)
	}
	return archive, nil
}

// extract appends every XML entry of a ZIP archive to the result.
// Entries that fail to parse count as unreadable, never as fatal.
func (c *Client) extract(archive []byte, result *sat.PackageResult) error {
	reader, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return fmt.Errorf("satws: failed to open package archive: %w", err)
	}

	for _, entry := range reader.File {
		if !strings.HasSuffix(strings.ToLower(entry.Name), ".xml") {
			continue
		}
		payload, err := readZipEntry(entry)
		if err != nil {
			result.Unreadable++
			c.logger.Warn("unreadable package entry", zap.String("entry", entry.Name), zap.Error(err))
			continue
		}
		doc, err := parseDocument(payload)
		if err != nil {
			result.Unreadable++
			c.logger.Warn("unreadable package entry", zap.String("entry", entry.Name), zap.Error(err))
			continue
		}
		result.Documents = append(result.Documents, doc)
	}
	return nil
}

func readZipEntry(entry *zip.File) ([]byte, error) {
	rc, err := entry.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(io.LimitReader(rc, maxResponseSize))
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	if _, err := c.credentials.Credentials(ctx); err != nil {
		return fmt.Errorf("%w: %v", sat.ErrInvalidCredentials, err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("satws: failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("satws: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("satws: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return sat.NewThrottleError(sat.ThrottleMinuteQuota)
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("satws: service error (status %d)", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status %d", sat.ErrRequestRejected, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("satws: failed to read response: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("satws: failed to decode response: %w", err)
	}
	return nil
}

// mapStatusCode converts a service status code to a domain error
func mapStatusCode(code, message string) error {
	switch code {
	case codeAccepted:
		return nil
	case codeNoDocuments:
		return sat.ErrNoDocuments
	case codeDailyQuota:
		return sat.NewThrottleError(sat.ThrottleDailyQuota)
	case codeMinuteQuota:
		return sat.NewThrottleError(sat.ThrottleMinuteQuota)
	case codeInvalidSigner:
		return fmt.Errorf("%w: %s", sat.ErrInvalidCredentials, message)
	case codeExhausted, codeDuplicate:
		return fmt.Errorf("%w: %s (%s)", sat.ErrRequestRejected, message, code)
	default:
		return fmt.Errorf("satws: service returned code %s: %s", code, message)
	}
}

// Compile-time interface compliance check
var _ sat.PackageClient = (*Client)(nil)
