// Package browser provisions headless Chrome sessions for form
// automation. The host environment is treated as unreliable: browser
// installs move between deployments, so acquisition walks an ordered
// list of known configurations before falling back to discovery.
package browser

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/kursadbilgin/enroll-engine/internal/domain"
)

const (
	connectivityURL     = "https://httpbin.org/ip"
	preflightTimeout    = 5 * time.Second
	constructionTimeout = 30 * time.Second
	smokeTestTimeout    = 15 * time.Second

	userAgent = "Mozilla/5.0 (Linux; x86_64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/120.0.0.0 Safari/537.36"
)

// antiDetectionScript runs on every new document to suppress the
// automation fingerprints the target site inspects.
const antiDetectionScript = `
Object.defineProperty(navigator, 'webdriver', {
    get: () => undefined
});
delete navigator.__proto__.webdriver;
Object.defineProperty(navigator, 'plugins', {
    get: () => [1, 2, 3, 4, 5]
});
Object.defineProperty(navigator, 'languages', {
    get: () => ['es-ES', 'es', 'en']
});
`

// Candidate names one known browser installation. DriverPath is the
// matching driver binary shipped alongside managed installs; both paths
// must exist and be executable before the candidate is attempted.
type Candidate struct {
	Name       string
	ExecPath   string
	DriverPath string
}

// Config carries provisioning knobs resolved from the environment.
type Config struct {
	Production       bool
	ChromeBin        string
	ChromeDriverPath string
}

// Metrics is the subset of observability the provisioner reports to.
type Metrics interface {
	IncProvisionAttempt(strategy string, success bool)
}

// Session is one live browser instance, exclusively owned by a single
// task worker for its whole lifetime.
type Session struct {
	ctx     context.Context
	cancels []context.CancelFunc
}

// Ctx returns the chromedp context for driving the session.
func (s *Session) Ctx() context.Context { return s.ctx }

// Close tears down the browser. Safe to call once per session.
func (s *Session) Close() {
	for i := len(s.cancels) - 1; i >= 0; i-- {
		s.cancels[i]()
	}
}

// Provisioner produces working browser sessions with environment
// failover.
type Provisioner struct {
	cfg     Config
	logger  *zap.Logger
	metrics Metrics
	client  *resty.Client
}

func NewProvisioner(cfg Config, logger *zap.Logger, metrics Metrics) *Provisioner {
	if logger == nil {
		logger = zap.NewNop()
	}

	client := resty.New()
	client.SetTimeout(preflightTimeout)
	client.SetRetryCount(0)

	return &Provisioner{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		client:  client,
	}
}

// DetectProduction reports whether the process runs on a hosted
// platform, inferred from deployment environment variables.
func DetectProduction() bool {
	if os.Getenv("RENDER") != "" {
		return true
	}
	if strings.Contains(os.Getenv("RENDER_EXTERNAL_URL"), "render.com") {
		return true
	}
	if os.Getenv("PRODUCTION") != "" || os.Getenv("DYNO") != "" {
		return true
	}
	return false
}

// Acquire returns a working session or fails with domain.ErrProvision
// semantics only after every strategy is exhausted. The caller owns the
// session and must Close it.
func (p *Provisioner) Acquire(ctx context.Context) (*Session, error) {
	p.preflight(ctx)

	var session *Session
	var err error
	if p.cfg.Production {
		session, err = p.acquireProduction(ctx)
	} else {
		session, err = p.acquireLocal(ctx)
	}
	if err != nil {
		return nil, err
	}

	// Both post-construction steps are best effort: a flaky smoke test
	// or injection failure does not invalidate the session.
	p.smokeTest(session)
	p.installAntiDetection(session)

	return session, nil
}

// preflight checks outbound reachability over plain HTTP before burning
// a browser construction attempt. Failures are logged, never fatal.
func (p *Provisioner) preflight(ctx context.Context) {
	resp, err := p.client.R().SetContext(ctx).Get(connectivityURL)
	if err != nil {
		p.logger.Warn("connectivity preflight failed", zap.Error(err))
		return
	}
	p.logger.Debug("connectivity preflight ok",
		zap.Int("status", resp.StatusCode()),
	)
}

func (p *Provisioner) acquireProduction(ctx context.Context) (*Session, error) {
	for _, candidate := range p.productionCandidates() {
		if !p.verifyCandidate(candidate) {
			p.metrics.IncProvisionAttempt(candidate.Name, false)
			continue
		}

		session, err := p.construct(ctx, candidate.ExecPath)
		if err != nil {
			p.logger.Warn("candidate construction failed",
				zap.String("candidate", candidate.Name),
				zap.Error(err),
			)
			p.metrics.IncProvisionAttempt(candidate.Name, false)
			continue
		}

		p.logger.Info("browser session acquired",
			zap.String("candidate", candidate.Name),
			zap.String("execPath", candidate.ExecPath),
		)
		p.metrics.IncProvisionAttempt(candidate.Name, true)
		return session, nil
	}

	// Dynamic discovery over the broader search lists.
	if execPath := firstExistingFile(chromeSearchPaths(p.cfg.ChromeBin)); execPath != "" {
		if session, err := p.construct(ctx, execPath); err == nil {
			p.logger.Info("browser session acquired via discovery",
				zap.String("execPath", execPath),
			)
			p.metrics.IncProvisionAttempt("discovery", true)
			return session, nil
		}
	}
	p.metrics.IncProvisionAttempt("discovery", false)

	// Managed fallback: let chromedp locate a compatible browser on its
	// own instead of pinning an executable.
	session, err := p.construct(ctx, "")
	if err != nil {
		p.metrics.IncProvisionAttempt("managed", false)
		return nil, fmt.Errorf("%w: all production browser configurations exhausted: %v", domain.ErrProvision, err)
	}
	p.metrics.IncProvisionAttempt("managed", true)
	return session, nil
}

func (p *Provisioner) acquireLocal(ctx context.Context) (*Session, error) {
	session, err := p.construct(ctx, p.cfg.ChromeBin)
	if err == nil {
		p.metrics.IncProvisionAttempt("local", true)
		return session, nil
	}
	p.logger.Warn("local browser construction failed, retrying with lookup", zap.Error(err))
	p.metrics.IncProvisionAttempt("local", false)

	session, err = p.construct(ctx, "")
	if err != nil {
		p.metrics.IncProvisionAttempt("managed", false)
		return nil, fmt.Errorf("%w: local browser setup failed: %v", domain.ErrProvision, err)
	}
	p.metrics.IncProvisionAttempt("managed", true)
	return session, nil
}

// productionCandidates lists the known install locations, most specific
// first. Environment overrides slot in ahead of the system defaults.
func (p *Provisioner) productionCandidates() []Candidate {
	candidates := []Candidate{
		{
			Name:       "buildpack-google-chrome",
			ExecPath:   "/app/.heroku-buildpack-google-chrome/opt/google/chrome/chrome",
			DriverPath: "/app/.chromedriver/bin/chromedriver",
		},
		{
			Name:       "buildpack-chrome-alt",
			ExecPath:   "/app/.google-chrome/chrome",
			DriverPath: "/app/.chromedriver/chromedriver",
		},
	}

	envExec := p.cfg.ChromeBin
	if envExec == "" {
		envExec = "/usr/bin/google-chrome-stable"
	}
	envDriver := p.cfg.ChromeDriverPath
	if envDriver == "" {
		envDriver = "/usr/local/bin/chromedriver"
	}
	candidates = append(candidates,
		Candidate{Name: "environment", ExecPath: envExec, DriverPath: envDriver},
		Candidate{Name: "system-linux", ExecPath: "/usr/bin/google-chrome-stable", DriverPath: "/usr/bin/chromedriver"},
		Candidate{Name: "generic-chrome", ExecPath: "/usr/bin/google-chrome", DriverPath: "/usr/local/bin/chromedriver"},
		Candidate{Name: "chromium-fallback", ExecPath: "/usr/bin/chromium-browser", DriverPath: "/usr/bin/chromedriver"},
	)
	return candidates
}

func chromeSearchPaths(override string) []string {
	paths := []string{
		"/app/.heroku-buildpack-google-chrome/opt/google/chrome/chrome",
		"/app/.google-chrome/chrome",
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/opt/google/chrome/chrome",
	}
	if override != "" {
		paths = append([]string{override}, paths...)
	}
	return paths
}

// verifyCandidate checks both binaries exist and are executable,
// self-healing permissions when the filesystem allows it.
func (p *Provisioner) verifyCandidate(c Candidate) bool {
	for _, path := range []string{c.ExecPath, c.DriverPath} {
		if path == "" {
			continue
		}
		if !ensureExecutable(path) {
			p.logger.Debug("candidate binary unusable",
				zap.String("candidate", c.Name),
				zap.String("path", path),
			)
			return false
		}
	}
	return true
}

func ensureExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	if info.Mode()&0o111 != 0 {
		return true
	}
	// Managed installs sometimes land without the executable bit.
	if err := os.Chmod(path, 0o755); err != nil {
		return false
	}
	return true
}

func firstExistingFile(paths []string) string {
	for _, path := range paths {
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path
		}
	}
	return ""
}

// construct starts a browser with the configured flag profile. An empty
// execPath defers the executable lookup to chromedp.
func (p *Provisioner) construct(ctx context.Context, execPath string) (*Session, error) {
	opts := p.allocatorOptions(execPath)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	runCtx, runCancel := context.WithTimeout(browserCtx, constructionTimeout)
	defer runCancel()

	// Run with no actions forces the browser process to start now, so a
	// broken install fails here instead of mid-task.
	if err := chromedp.Run(runCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("browser startup failed: %w", err)
	}

	return &Session{
		ctx:     browserCtx,
		cancels: []context.CancelFunc{allocCancel, browserCancel},
	}, nil
}

func (p *Provisioner) allocatorOptions(execPath string) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{},
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.WindowSize(1920, 1080),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-web-security", true),
		chromedp.Flag("allow-running-insecure-content", true),
		chromedp.UserAgent(userAgent),
	)

	if p.cfg.Production {
		opts = append(opts,
			chromedp.Headless,
			chromedp.Flag("disable-software-rasterizer", true),
			chromedp.Flag("disable-background-timer-throttling", true),
			chromedp.Flag("disable-backgrounding-occluded-windows", true),
			chromedp.Flag("disable-renderer-backgrounding", true),
			chromedp.Flag("disable-features", "TranslateUI,VizDisplayCompositor"),
			chromedp.Flag("disable-extensions", true),
			chromedp.Flag("disable-plugins", true),
			// Skip image loads in hosted mode; the form works without
			// them and render nodes are memory constrained.
			chromedp.Flag("blink-settings", "imagesEnabled=false"),
			chromedp.Flag("memory-pressure-off", true),
			chromedp.Flag("aggressive-cache-discard", true),
		)
	}

	if execPath != "" {
		opts = append(opts, chromedp.ExecPath(execPath))
	}
	return opts
}

// smokeTest navigates to a known-reachable address and reads the page
// title. Failure is logged, never fatal: a slow network at startup is
// not proof the session is broken.
func (p *Provisioner) smokeTest(session *Session) {
	ctx, cancel := context.WithTimeout(session.Ctx(), smokeTestTimeout)
	defer cancel()

	var title string
	err := chromedp.Run(ctx,
		chromedp.Navigate(connectivityURL),
		chromedp.Sleep(2*time.Second),
		chromedp.Title(&title),
	)
	if err != nil {
		p.logger.Warn("browser smoke test failed", zap.Error(err))
		return
	}
	p.logger.Info("browser smoke test ok", zap.String("title", title))
}

// installAntiDetection registers the fingerprint-suppression script to
// run on every document the session loads.
func (p *Provisioner) installAntiDetection(session *Session) {
	err := chromedp.Run(session.Ctx(),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(antiDetectionScript).Do(ctx)
			return err
		}),
	)
	if err != nil {
		p.logger.Warn("anti-detection setup failed", zap.Error(err))
		return
	}
	p.logger.Debug("anti-detection script installed")
}
