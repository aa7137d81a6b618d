package automation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

type ChromeOptions struct {
	Headless bool
	ExecPath string
	Logger   *slog.Logger
}

// ChromeBrowser dirige um Chrome/Chromium local via DevTools (chromedp).
type ChromeBrowser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
}

// NewChromeFactory devolve uma BrowserFactory que abre um Chrome por emissão.
func NewChromeFactory(o ChromeOptions) BrowserFactory {
	return func(ctx context.Context) (Browser, error) {
		return NewChromeBrowser(ctx, o)
	}
}

func NewChromeBrowser(ctx context.Context, o ChromeOptions) (*ChromeBrowser, error) {
	log := o.Logger
	if log == nil {
		log = slog.Default()
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", o.Headless),
		chromedp.WindowSize(1280, 900),
	)
	if o.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(o.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	bctx, cancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			log.Debug("chromedp", "msg", fmt.Sprintf(format, args...))
		}),
		chromedp.WithErrorf(func(format string, args ...any) {
			log.Warn("chromedp_error", "msg", fmt.Sprintf(format, args...))
		}),
	)

	// Run sem ações só sobe o navegador
	if err := chromedp.Run(bctx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}
	return &ChromeBrowser{ctx: bctx, cancel: cancel, allocCancel: allocCancel}, nil
}

// run executa no contexto do navegador respeitando o prazo de ctx.
func (b *ChromeBrowser) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx := b.ctx
	if dl, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithDeadline(b.ctx, dl)
		defer cancel()
	}
	done := make(chan error, 1)
	go func() { done <- chromedp.Run(runCtx, actions...) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// query traduz o seletor para chromedp; id e name viram seletor de atributo
// porque ids como "mainForm:txtInscricao1" não são CSS válido com '#'.
func query(sel Selector) (string, chromedp.QueryOption) {
	switch sel.By {
	case ByID:
		return `[id=` + strconv.Quote(sel.Value) + `]`, chromedp.ByQuery
	case ByName:
		return `[name=` + strconv.Quote(sel.Value) + `]`, chromedp.ByQuery
	case ByXPath:
		return sel.Value, chromedp.BySearch
	default:
		return sel.Value, chromedp.ByQuery
	}
}

func (b *ChromeBrowser) Navigate(ctx context.Context, url string) error {
	return b.run(ctx, chromedp.Navigate(url))
}

func (b *ChromeBrowser) Click(ctx context.Context, sel Selector) error {
	q, by := query(sel)
	return b.run(ctx, chromedp.Click(q, by, chromedp.NodeVisible))
}

func (b *ChromeBrowser) WaitVisible(ctx context.Context, sel Selector) error {
	q, by := query(sel)
	return b.run(ctx, chromedp.WaitVisible(q, by))
}

func (b *ChromeBrowser) Type(ctx context.Context, sel Selector, text string) error {
	q, by := query(sel)
	return b.run(ctx,
		chromedp.WaitVisible(q, by),
		chromedp.SetValue(q, "", by),
		chromedp.SendKeys(q, text, by),
	)
}

func (b *ChromeBrowser) TypeSlow(ctx context.Context, sel Selector, text string, delay time.Duration) error {
	q, by := query(sel)
	actions := []chromedp.Action{
		chromedp.WaitVisible(q, by),
		chromedp.SetValue(q, "", by),
		chromedp.Click(q, by),
	}
	for _, r := range text {
		actions = append(actions, chromedp.SendKeys(q, string(r), by), chromedp.Sleep(delay))
	}
	return b.run(ctx, actions...)
}

const shadowTypeJS = `(function(host, inner, value) {
	const h = document.querySelector(host);
	if (!h || !h.shadowRoot) return false;
	const el = h.shadowRoot.querySelector(inner);
	if (!el) return false;
	el.focus();
	el.value = value;
	el.dispatchEvent(new Event('input', {bubbles: true, composed: true}));
	el.dispatchEvent(new Event('change', {bubbles: true, composed: true}));
	return true;
})(%s, %s, %s)`

func (b *ChromeBrowser) TypeShadow(ctx context.Context, host, inner, text string) error {
	args := make([]any, 0, 3)
	for _, s := range []string{host, inner, text} {
		j, err := json.Marshal(s)
		if err != nil {
			return err
		}
		args = append(args, string(j))
	}
	var ok bool
	if err := b.run(ctx, chromedp.Evaluate(fmt.Sprintf(shadowTypeJS, args...), &ok)); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("shadow input %q inside %q not found", inner, host)
	}
	return nil
}

func (b *ChromeBrowser) PressEnter(ctx context.Context, sel Selector) error {
	q, by := query(sel)
	return b.run(ctx, chromedp.SendKeys(q, kb.Enter, by))
}

func (b *ChromeBrowser) SetDownloadDir(ctx context.Context, dir string) error {
	return b.run(ctx, browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllow).
		WithDownloadPath(dir).
		WithEventsEnabled(true))
}

func (b *ChromeBrowser) Close() error {
	b.cancel()
	b.allocCancel()
	return nil
}
