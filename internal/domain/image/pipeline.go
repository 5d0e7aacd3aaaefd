package image

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sync/atomic"

	"roadscan-server-go/internal/platform/config"
	"roadscan-server-go/internal/utils"
)

// Pipeline streams an upload into memory under the size cap and validates it.
type Pipeline struct {
	validator *SecurityValidator
	logger    *utils.Logger
	ingest    *config.IngestConfig

	totalProcessed    atomic.Int64
	accepted          atomic.Int64
	oversized         atomic.Int64
	failedValidations atomic.Int64
	securityIncidents atomic.Int64
}

// Options configures the pipeline behaviour.
type Options struct {
	Ingest *config.IngestConfig
	Logger *utils.Logger
}

// Input describes a streaming upload.
type Input struct {
	Reader      io.Reader
	Filename    string
	ContentType string
}

// Output is an accepted upload.
type Output struct {
	Bytes       []byte
	Filename    string
	ContentType string
	Format      string
	Checksum    string
	Validation  ValidationResult
}

func NewPipeline(opts Options) (*Pipeline, error) {
	if opts.Ingest == nil {
		return nil, fmt.Errorf("ingest config is required")
	}
	return &Pipeline{
		validator: NewSecurityValidator(opts.Ingest, opts.Logger),
		logger:    opts.Logger,
		ingest:    opts.Ingest,
	}, nil
}

// Accepts reports whether a file name / declared type pair would pass the
// type gate, without reading any bytes.
func (p *Pipeline) Accepts(filename, contentType string) bool {
	return p.validator.IsContentTypeAllowed(DeclaredContentType(contentType, filename))
}

// Process reads input up to MaxFileSize bytes and runs validation on it.
func (p *Pipeline) Process(ctx context.Context, input Input) (*Output, error) {
	if input.Reader == nil {
		return nil, fmt.Errorf("image reader is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	p.totalProcessed.Add(1)

	declared := DeclaredContentType(input.ContentType, input.Filename)
	if gate := p.validator.CheckDeclared(declared); !gate.IsValid {
		p.failedValidations.Add(1)
		p.logger.InfoTag("Ingest", "rejected %q: declared type %q not accepted", input.Filename, input.ContentType)
		return nil, gate.Error
	}

	maxSize := p.ingest.MaxFileSize
	if maxSize <= 0 {
		maxSize = config.DefaultMaxFileSize
	}

	limited := &io.LimitedReader{
		R: input.Reader,
		N: maxSize + 1,
	}

	rawBuf := bytes.NewBuffer(make([]byte, 0, 32*1024))
	hasher := sha256.New()
	if _, err := io.Copy(io.MultiWriter(rawBuf, hasher), &ctxReader{ctx: ctx, r: limited}); err != nil {
		return nil, fmt.Errorf("stream image bytes: %w", err)
	}

	if limited.N <= 0 {
		p.oversized.Add(1)
		p.logger.WarnTag("Ingest", "rejected %q: exceeds %d bytes", input.Filename, maxSize)
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, maxSize)
	}

	validation := p.validator.ValidateBytes(rawBuf.Bytes(), declared)
	if !validation.IsValid {
		p.failedValidations.Add(1)
		if validation.SecurityRisk != "" {
			p.securityIncidents.Add(1)
		}
		if validation.Error != nil {
			return nil, validation.Error
		}
		return nil, ErrInvalidImage
	}

	p.accepted.Add(1)
	return &Output{
		Bytes:       rawBuf.Bytes(),
		Filename:    utils.CleanFilename(input.Filename),
		ContentType: validation.ContentType,
		Format:      validation.Format,
		Checksum:    hex.EncodeToString(hasher.Sum(nil)),
		Validation:  validation,
	}, nil
}

// Metrics returns a snapshot of the pipeline counters.
func (p *Pipeline) Metrics() Metrics {
	return Metrics{
		TotalProcessed:    p.totalProcessed.Load(),
		Accepted:          p.accepted.Load(),
		Oversized:         p.oversized.Load(),
		FailedValidations: p.failedValidations.Load(),
		SecurityIncidents: p.securityIncidents.Load(),
	}
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(b []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(b)
}
