package enroll

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/kursadbilgin/enroll-engine/internal/domain"
)

const (
	formContainerSelector = "#partial_enroll_form"

	// The target site renders the form asynchronously; these settle
	// delays mirror what the site tolerates without tripping its
	// anti-automation checks.
	initialSettleDelay = 3 * time.Second
	postWaitDelay      = time.Second
	preSubmitDelay     = 2 * time.Second
	preClickDelay      = 500 * time.Millisecond
	formWaitTimeout    = 10 * time.Second
)

// countrySynonyms are matched against option text when selecting by
// value fails.
var countrySynonyms = []string{"mexico", "méxico", "mx"}

// FormDriver fills and submits one enrollment form per record using an
// exclusively owned browser session.
type FormDriver struct {
	country   string
	extractor *Extractor
	logger    *zap.Logger
}

func NewFormDriver(country string, logger *zap.Logger) *FormDriver {
	if country == "" {
		country = "MX"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FormDriver{
		country:   country,
		extractor: NewExtractor(logger),
		logger:    logger,
	}
}

// Submit drives the whole per-record protocol: navigate, fill, consent,
// submit, extract. Every failure is returned as a typed Result; nothing
// escapes to the caller.
func (d *FormDriver) Submit(ctx context.Context, record domain.Record, affiliation domain.AffiliationType) Result {
	given, family := record.SplitName()

	url := affiliation.URL()
	d.logger.Info("navigating to enrollment form",
		zap.String("url", url),
		zap.String("record", record.Describe()),
	)
	if err := chromedp.Run(ctx, chromedp.Navigate(url)); err != nil {
		return fail(FailCritical, fmt.Sprintf("navigation failed: %v", err))
	}

	// Wait for the form container, but proceed on timeout: a slow
	// render is not proof the form is absent.
	_ = chromedp.Run(ctx, chromedp.Sleep(initialSettleDelay))
	waitCtx, cancel := context.WithTimeout(ctx, formWaitTimeout)
	if err := chromedp.Run(waitCtx, chromedp.WaitVisible(formContainerSelector, chromedp.ByQuery)); err != nil {
		d.logger.Warn("form container slow to appear, continuing", zap.Error(err))
	}
	cancel()
	_ = chromedp.Run(ctx, chromedp.Sleep(postWaitDelay))

	fields := []struct {
		what     string
		locators []Locator
		value    string
	}{
		{what: "given name field", locators: givenNameLocators, value: given},
		{what: "family name field", locators: familyNameLocators, value: family},
		{what: "email field", locators: emailLocators, value: record.Email},
	}
	for _, field := range fields {
		loc, err := resolve(ctx, field.locators, field.what)
		if err != nil {
			return fail(FailResolution, err.Error())
		}
		if err := d.fillField(ctx, loc, field.value); err != nil {
			return fail(FailResolution, fmt.Sprintf("%s: %v", field.what, err))
		}
		d.logger.Debug("field filled",
			zap.String("field", field.what),
			zap.String("strategy", loc.Name),
		)
	}

	// Country and consent are best effort; the form submits without
	// them on some variants.
	if err := d.selectCountry(ctx); err != nil {
		d.logger.Warn("country selection failed", zap.Error(err))
	}
	if err := d.checkConsentBoxes(ctx); err != nil {
		d.logger.Warn("consent checkbox pass failed", zap.Error(err))
	}

	_ = chromedp.Run(ctx, chromedp.Sleep(preSubmitDelay))

	if err := d.clickSubmit(ctx); err != nil {
		return fail(FailResolution, err.Error())
	}
	d.logger.Info("enrollment form submitted", zap.String("record", record.Describe()))

	code := d.extractor.Extract(ctx)
	if code == "" {
		return fail(FailExtraction, "confirmation code not found on result page")
	}
	return succeed(code)
}

// fillField scrolls, focuses, clears and types the value, falling back
// to direct assignment plus a synthesized input event. The stored value
// is read back and must equal the intended one.
func (d *FormDriver) fillField(ctx context.Context, loc Locator, value string) error {
	_ = chromedp.Run(ctx, chromedp.ScrollIntoView(loc.Selector, chromedp.ByQuery))

	err := chromedp.Run(ctx,
		chromedp.Focus(loc.Selector, chromedp.ByQuery),
		chromedp.SetValue(loc.Selector, "", chromedp.ByQuery),
		chromedp.SendKeys(loc.Selector, value, chromedp.ByQuery),
	)
	if err != nil {
		script := fmt.Sprintf(`(() => {
			const el = document.querySelector(%q);
			if (!el) return false;
			el.value = %q;
			el.dispatchEvent(new Event('input', { bubbles: true }));
			return true;
		})()`, loc.Selector, value)

		var ok bool
		if evalErr := chromedp.Run(ctx, chromedp.Evaluate(script, &ok)); evalErr != nil || !ok {
			return fmt.Errorf("keystroke and scripted fill both failed: %v", err)
		}
	}

	var stored string
	if err := chromedp.Run(ctx, chromedp.Value(loc.Selector, &stored, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("readback failed: %w", err)
	}
	if stored != value {
		return fmt.Errorf("readback mismatch: stored %q, want %q", stored, value)
	}
	return nil
}

// selectCountry prefers an exact value match for the configured country
// code, then falls back to fuzzy option-text matching.
func (d *FormDriver) selectCountry(ctx context.Context) error {
	loc, err := resolve(ctx, countryLocators, "country selector")
	if err != nil {
		return err
	}

	script := fmt.Sprintf(`(() => {
		const sel = document.querySelector(%q);
		if (!sel) return false;
		const target = %q;
		for (const opt of sel.options) {
			if (opt.value === target) {
				sel.value = opt.value;
				sel.dispatchEvent(new Event('change', { bubbles: true }));
				return true;
			}
		}
		const synonyms = %s;
		for (const syn of synonyms) {
			for (const opt of sel.options) {
				if (opt.text.toLowerCase().includes(syn)) {
					sel.value = opt.value;
					sel.dispatchEvent(new Event('change', { bubbles: true }));
					return true;
				}
			}
		}
		return false;
	})()`, loc.Selector, d.country, jsStringArray(countrySynonyms))

	var ok bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &ok)); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no option matched country %q", d.country)
	}
	return nil
}

// checkConsentBoxes marks the known consent checkboxes plus any other
// unchecked checkbox currently on the page, in one scripted pass.
func (d *FormDriver) checkConsentBoxes(ctx context.Context) error {
	const script = `(() => {
		const boxes = [];
		const agree = document.getElementById('ctlAgree');
		const marketing = document.getElementById('chk_mi');
		if (agree) boxes.push(agree);
		if (marketing) boxes.push(marketing);
		for (const box of document.querySelectorAll('input[type="checkbox"]:not(:checked)')) {
			boxes.push(box);
		}
		let marked = 0;
		for (const box of boxes) {
			if (!box.checked) {
				box.checked = true;
				box.click();
				marked++;
			}
		}
		return marked;
	})()`

	var marked int
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &marked)); err != nil {
		return err
	}
	d.logger.Debug("consent checkboxes marked", zap.Int("count", marked))
	return nil
}

// clickSubmit activates the submit control via a scripted click, with a
// native click as fallback.
func (d *FormDriver) clickSubmit(ctx context.Context) error {
	loc, err := resolve(ctx, submitLocators, "submit control")
	if err != nil {
		return err
	}

	_ = chromedp.Run(ctx,
		chromedp.ScrollIntoView(loc.Selector, chromedp.ByQuery),
		chromedp.Sleep(preClickDelay),
	)

	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) return false;
		el.click();
		return true;
	})()`, loc.Selector)

	var ok bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &ok)); err == nil && ok {
		return nil
	}
	if err := chromedp.Run(ctx, chromedp.Click(loc.Selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("submit control click failed: %w", err)
	}
	return nil
}

func jsStringArray(values []string) string {
	out := "["
	for i, v := range values {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%q", v)
	}
	return out + "]"
}
