// Package browser implements the web-browsing agent engine on Playwright.
//
// Each session gets its own isolated browser context with a single page,
// opened on the configured start page. Answering a query is a bounded
// fetch-and-answer loop: search, read the cleaned page, let the model
// either answer or pick a link to follow, repeat until an answer lands or
// the step budget runs out.
package browser

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/websearcher/pkg/agent"
	"github.com/entrhq/websearcher/pkg/llm"
	"github.com/entrhq/websearcher/pkg/logging"
)

const (
	// DefaultStartURL is where fresh session pages land.
	DefaultStartURL = "https://www.duckduckgo.com"

	// searchURLFormat turns a question into a search-results page.
	searchURLFormat = "https://html.duckduckgo.com/html/?q=%s"

	// DefaultMaxContentTokens bounds how much cleaned page text goes into
	// a single prompt.
	DefaultMaxContentTokens = 6000

	// maxPromptLinks bounds how many page links are offered to the model.
	maxPromptLinks = 25

	// visitDirective prefixes a model reply that asks to follow a link.
	visitDirective = "VISIT "

	answerPrompt = "You are a web research assistant. You are looking at a web page to answer " +
		"the user's question. If the page content answers the question, reply with the answer " +
		"and nothing else. If it does not, reply with exactly `VISIT <url>` choosing the most " +
		"promising link from the list. Never reply with anything else."
)

// Options configures the engine.
type Options struct {
	// Headless controls whether browsers run without a visible window.
	Headless bool

	// StartURL is the page new sessions open on. Defaults to DefaultStartURL.
	StartURL string

	// MaxContentTokens caps the page text included in each prompt.
	// Defaults to DefaultMaxContentTokens.
	MaxContentTokens int
}

// Engine implements agent.Engine on a shared Playwright install with one
// chromium instance; sessions are isolated from each other by browser
// context, not by process.
type Engine struct {
	mu          sync.Mutex
	pw          *playwright.Playwright
	browser     playwright.Browser
	initialized bool

	provider llm.Provider
	opts     Options
	logger   *logging.Logger
}

// Page is the engine's PageHandle: one browser context plus its page.
// Release is idempotent; a released page reports an empty URL.
type Page struct {
	mu      sync.Mutex
	context playwright.BrowserContext
	page    playwright.Page
	url     string
	closed  bool
}

// URL returns the page's last known URL, or "" after release.
func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ""
	}
	return p.url
}

// goTo navigates the page and records the landing URL.
func (p *Page) goTo(target string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("page is closed")
	}

	if _, err := p.page.Goto(target, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return err
	}
	p.url = p.page.URL()
	return nil
}

// content returns the page's current raw HTML.
func (p *Page) content() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return "", fmt.Errorf("page is closed")
	}
	return p.page.Content()
}

func (p *Page) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	_ = p.page.Close()    // ignore errors, continue cleanup
	_ = p.context.Close() // ignore errors, continue cleanup
}

// NewEngine creates an engine using provider for completions. Call
// Initialize before opening browser contexts.
func NewEngine(provider llm.Provider, logger *logging.Logger, opts Options) *Engine {
	if opts.StartURL == "" {
		opts.StartURL = DefaultStartURL
	}
	if opts.MaxContentTokens <= 0 {
		opts.MaxContentTokens = DefaultMaxContentTokens
	}
	return &Engine{
		provider: provider,
		opts:     opts,
		logger:   logger,
	}
}

// Initialize installs and starts Playwright and launches the shared
// chromium instance. Safe to call more than once.
func (e *Engine) Initialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return nil
	}

	// Playwright's installer output goes to the service log, not stdout
	runOpts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  e.logger.Writer(),
		Stderr:  e.logger.Writer(),
	}

	if err := playwright.Install(runOpts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(e.opts.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	e.pw = pw
	e.browser = browser
	e.initialized = true
	e.logger.Infof("browser engine initialized (headless=%t)", e.opts.Headless)
	return nil
}

// OpenBrowserContext implements agent.Engine. It creates an isolated
// browser context with one page, navigated to the start URL.
func (e *Engine) OpenBrowserContext(ctx context.Context) (agent.PageHandle, error) {
	e.mu.Lock()
	browser := e.browser
	initialized := e.initialized
	e.mu.Unlock()

	if !initialized {
		return nil, fmt.Errorf("engine not initialized: %w", agent.ErrUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%v: %w", err, agent.ErrTimeout)
	}

	browserCtx, err := browser.NewContext()
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %v: %w", err, classifyBrowserErr(err))
	}

	pwPage, err := browserCtx.NewPage()
	if err != nil {
		_ = browserCtx.Close()
		return nil, fmt.Errorf("failed to create page: %v: %w", err, classifyBrowserErr(err))
	}

	page := &Page{context: browserCtx, page: pwPage, url: "about:blank"}
	if err := page.goTo(e.opts.StartURL); err != nil {
		page.close()
		return nil, fmt.Errorf("failed to open start page: %v: %w", err, classifyBrowserErr(err))
	}

	return page, nil
}

// RunQuery implements agent.Engine. It drives the fetch-and-answer loop
// for a single question, using at most maxSteps page loads.
func (e *Engine) RunQuery(ctx context.Context, handle agent.PageHandle, question string, maxSteps int) (string, error) {
	page, ok := handle.(*Page)
	if !ok {
		return "", fmt.Errorf("foreign page handle %T: %w", handle, agent.ErrUnavailable)
	}

	target := fmt.Sprintf(searchURLFormat, url.QueryEscape(question))
	for step := 1; step <= maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("%v: %w", err, agent.ErrTimeout)
		}

		if err := page.goTo(target); err != nil {
			return "", fmt.Errorf("step %d: %v: %w", step, err, agent.ErrNavigationFailed)
		}

		rawHTML, err := page.content()
		if err != nil {
			return "", fmt.Errorf("step %d: %v: %w", step, err, agent.ErrNavigationFailed)
		}

		reply, err := e.askModel(ctx, question, rawHTML)
		if err != nil {
			return "", fmt.Errorf("step %d: %v: %w", step, err, agent.ErrModelError)
		}

		next, isVisit := parseVisit(reply)
		if !isVisit {
			return reply, nil
		}

		e.logger.Debugf("query step %d: following %s", step, next)
		target = next
	}

	return "", fmt.Errorf("no answer after %d steps: %w", maxSteps, agent.ErrStepBudgetExceeded)
}

// ReleaseBrowserContext implements agent.Engine. Releasing an already
// released handle is a no-op.
func (e *Engine) ReleaseBrowserContext(handle agent.PageHandle) error {
	page, ok := handle.(*Page)
	if !ok {
		return fmt.Errorf("foreign page handle %T", handle)
	}
	page.close()
	return nil
}

// Shutdown closes the shared browser and stops Playwright. Sessions must
// be closed first; their contexts die with the browser regardless.
func (e *Engine) Shutdown() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return nil
	}
	e.initialized = false

	if e.browser != nil {
		_ = e.browser.Close()
		e.browser = nil
	}
	if e.pw != nil {
		if err := e.pw.Stop(); err != nil {
			return fmt.Errorf("failed to stop playwright: %w", err)
		}
		e.pw = nil
	}
	return nil
}

// askModel builds the prompt for the current page and returns the model's
// raw reply.
func (e *Engine) askModel(ctx context.Context, question, rawHTML string) (string, error) {
	content, err := cleanHTML(rawHTML)
	if err != nil {
		return "", fmt.Errorf("failed to clean page: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", question)
	if content.Title != "" {
		fmt.Fprintf(&b, "Page title: %s\n", content.Title)
	}
	fmt.Fprintf(&b, "Page content:\n%s\n", llm.TruncateTokens(content.Text, e.provider.Model(), e.opts.MaxContentTokens))

	if len(content.Links) > 0 {
		b.WriteString("\nLinks:\n")
		links := content.Links
		if len(links) > maxPromptLinks {
			links = links[:maxPromptLinks]
		}
		for _, link := range links {
			fmt.Fprintf(&b, "- %s (%s)\n", link.Text, link.Href)
		}
	}

	reply, err := e.provider.Complete(ctx, []*llm.Message{
		llm.NewSystemMessage(answerPrompt),
		llm.NewUserMessage(b.String()),
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

// parseVisit reports whether reply is a VISIT directive and extracts its
// target URL.
func parseVisit(reply string) (string, bool) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(reply), "`")
	if !strings.HasPrefix(trimmed, visitDirective) {
		return "", false
	}
	target := strings.Trim(strings.TrimPrefix(trimmed, visitDirective), "`<> ")
	if !strings.HasPrefix(target, "http") {
		return "", false
	}
	return target, true
}

// classifyBrowserErr maps a Playwright failure onto the engine error kinds.
func classifyBrowserErr(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(strings.ToLower(err.Error()), "timeout") {
		return agent.ErrTimeout
	}
	return agent.ErrUnavailable
}
