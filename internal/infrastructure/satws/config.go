package satws

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/mxsuite/backend/internal/domain/sat"
)

// Config holds the connection settings for the bulk download web service
type Config struct {
	BaseURL        string
	RFC            string
	RequestTimeout time.Duration
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("satws: base URL is required")
	}
	if c.RFC == "" {
		return fmt.Errorf("satws: RFC is required")
	}
	return nil
}

// FileCredentialProvider loads the fiscal certificate material from disk.
// Files are read once and cached; the service restarts on rotation.
type FileCredentialProvider struct {
	rfc             string
	certificatePath string
	privateKeyPath  string
	passphrase      string

	mu     sync.Mutex
	cached *sat.Credentials
}

// NewFileCredentialProvider creates a provider reading PEM files from disk
func NewFileCredentialProvider(rfc, certificatePath, privateKeyPath, passphrase string) *FileCredentialProvider {
	return &FileCredentialProvider{
		rfc:             rfc,
		certificatePath: certificatePath,
		privateKeyPath:  privateKeyPath,
		passphrase:      passphrase,
	}
}

// Credentials implements sat.CredentialProvider
func (p *FileCredentialProvider) Credentials(ctx context.Context) (*sat.Credentials, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != nil {
		return p.cached, nil
	}
	if p.rfc == "" || p.certificatePath == "" || p.privateKeyPath == "" {
		return nil, fmt.Errorf("satws: fiscal credentials are not configured")
	}

	certificate, err := os.ReadFile(p.certificatePath)
	if err != nil {
		return nil, fmt.Errorf("satws: failed to read certificate: %w", err)
	}
	privateKey, err := os.ReadFile(p.privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("satws: failed to read private key: %w", err)
	}

	p.cached = &sat.Credentials{
		RFC:         p.rfc,
		Certificate: certificate,
		PrivateKey:  privateKey,
		Passphrase:  p.passphrase,
	}
	return p.cached, nil
}

// Compile-time interface compliance check
var _ sat.CredentialProvider = (*FileCredentialProvider)(nil)
