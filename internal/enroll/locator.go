package enroll

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// Locator is one named way of finding a page element. Each logical
// field carries an ordered list of locators; the first one that yields
// a visible element wins.
type Locator struct {
	Name     string
	Selector string
}

func byID(id string) Locator {
	return Locator{Name: "id=" + id, Selector: "#" + id}
}

func byName(name string) Locator {
	return Locator{Name: "name=" + name, Selector: fmt.Sprintf("[name='%s']", name)}
}

func byCSS(selector string) Locator {
	return Locator{Name: "css=" + selector, Selector: selector}
}

// Locator lists per logical form element, ordered most specific first.
var (
	givenNameLocators = []Locator{
		byID("first_name"),
		byName("first_name"),
		byCSS("input[name*='first']"),
	}
	familyNameLocators = []Locator{
		byID("last_name"),
		byName("last_name"),
		byCSS("input[name*='last']"),
	}
	emailLocators = []Locator{
		byID("email_address"),
		byName("email_address"),
		byCSS("input[type='email']"),
	}
	countryLocators = []Locator{
		byID("country"),
		byName("country"),
		byCSS("select[name*='country']"),
		byCSS("select[id*='country']"),
	}
	submitLocators = []Locator{
		byID("ctl00_PartialEnrollFormPlaceholder_partial_enroll_EnrollButton"),
		byCSS("a.css_button"),
		byCSS("a[class*='button']"),
		byCSS("input[type='submit']"),
	}
)

// strategyWaitTimeout bounds the wait for a single locator strategy.
const strategyWaitTimeout = 5 * time.Second

// resolve tries each locator in order, returning the first one whose
// element becomes visible within the per-strategy timeout. Exhausting
// the list is a resolution failure for the caller's record.
func resolve(ctx context.Context, locators []Locator, what string) (Locator, error) {
	for _, loc := range locators {
		waitCtx, cancel := context.WithTimeout(ctx, strategyWaitTimeout)
		err := chromedp.Run(waitCtx, chromedp.WaitVisible(loc.Selector, chromedp.ByQuery))
		cancel()
		if err == nil {
			return loc, nil
		}
		if ctx.Err() != nil {
			return Locator{}, fmt.Errorf("%s: session gone while resolving: %w", what, ctx.Err())
		}
	}
	return Locator{}, fmt.Errorf("%s: no locator strategy matched", what)
}
