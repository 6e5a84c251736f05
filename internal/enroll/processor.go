package enroll

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kursadbilgin/enroll-engine/internal/browser"
	"github.com/kursadbilgin/enroll-engine/internal/domain"
)

// SessionProvider acquires exclusively owned browser sessions.
type SessionProvider interface {
	Acquire(ctx context.Context) (*browser.Session, error)
}

// Processor runs the per-record enrollment protocol against one browser
// session. It is not safe for concurrent use; each task owns its own.
type Processor struct {
	provider SessionProvider
	driver   *FormDriver
	filter   *EmailFilter
	session  *browser.Session
	logger   *zap.Logger
}

func NewProcessor(provider SessionProvider, country string, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		provider: provider,
		driver:   NewFormDriver(country, logger),
		filter:   NewEmailFilter(),
		logger:   logger,
	}
}

// Start acquires the browser session the processor will use for every
// record of the batch.
func (p *Processor) Start(ctx context.Context) error {
	session, err := p.provider.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire browser session: %w", err)
	}
	p.session = session
	return nil
}

// Process runs one record end to end. Eligibility rejections and form
// failures are reported through the Result; only a missing session is a
// programming error.
func (p *Processor) Process(_ context.Context, record domain.Record, affiliation domain.AffiliationType) Result {
	if p.session == nil {
		return fail(FailCritical, "browser session not started")
	}

	if err := record.Validate(); err != nil {
		return fail(FailValidation, err.Error())
	}
	if err := p.filter.Check(record.Email); err != nil {
		return fail(FailValidation, err.Error())
	}

	return p.driver.Submit(p.session.Ctx(), record, affiliation)
}

// Close releases the browser session. Safe to call when Start failed or
// was never called.
func (p *Processor) Close() {
	if p.session == nil {
		return
	}
	p.session.Close()
	p.session = nil
	p.logger.Debug("browser session released")
}
