package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// step aplica o prazo de um passo sobre o ctx da emissão.
func step(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, stepTimeout)
}

// drive preenche o formulário do site. O clique de pré-preenchimento é
// best-effort; falha ao digitar o CNPJ é fatal.
func (r *Runner) drive(ctx context.Context, b Browser, site Site, vars Vars, log *slog.Logger) error {
	if err := r.navigate(ctx, b, site.URL); err != nil {
		return err
	}

	if !site.PreFillClick.Empty() {
		sctx, cancel := step(ctx)
		err := b.Click(sctx, site.PreFillClick)
		cancel()
		if err != nil {
			log.Warn("pre_fill_click_failed", "selector", site.PreFillClick.String(), "err", err)
		}
	}

	if site.Script != nil {
		return r.runScript(ctx, b, site, vars, log)
	}

	if site.ShadowHost != "" && site.ShadowInput != "" {
		sctx, cancel := step(ctx)
		err := b.TypeShadow(sctx, site.ShadowHost, site.ShadowInput, vars.CNPJ)
		cancel()
		if err != nil {
			return fmt.Errorf("type cnpj in shadow dom: %w", err)
		}
	} else if err := typeWithFallback(ctx, b, site.CNPJField, vars.CNPJ, site.SlowTyping, log); err != nil {
		return fmt.Errorf("type cnpj: %w", err)
	}

	if !site.Inscricao.Empty() {
		if err := typeWithFallback(ctx, b, site.Inscricao, vars.Inscricao, site.SlowTyping, log); err != nil {
			return fmt.Errorf("type inscricao: %w", err)
		}
	}

	if !site.Submit.Empty() {
		sctx, cancel := step(ctx)
		defer cancel()
		if err := b.Click(sctx, site.Submit); err != nil {
			return fmt.Errorf("submit: %w", err)
		}
	}
	return nil
}

func (r *Runner) navigate(ctx context.Context, b Browser, url string) error {
	sctx, cancel := step(ctx)
	defer cancel()
	if err := b.Navigate(sctx, url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// typeWithFallback tenta o seletor configurado e depois CSS e name com o mesmo valor.
func typeWithFallback(ctx context.Context, b Browser, sel Selector, text string, slow bool, log *slog.Logger) error {
	var errs []error
	for _, alt := range sel.alternatives() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		sctx, cancel := step(ctx)
		var err error
		if slow {
			err = b.TypeSlow(sctx, alt, text, slowTypeDelay)
		} else {
			err = b.Type(sctx, alt, text)
		}
		cancel()
		if err == nil {
			if alt != sel {
				log.Info("selector_fallback_used", "configured", sel.String(), "used", alt.String())
			}
			return nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", alt, err))
	}
	return errors.Join(errs...)
}

func (r *Runner) runScript(ctx context.Context, b Browser, site Site, vars Vars, log *slog.Logger) error {
	for i, st := range site.Script.Passos {
		err := r.runStep(ctx, b, st, vars, site.SlowTyping || st.Lento, log)
		if err == nil {
			continue
		}
		if st.Opcional {
			log.Warn("optional_step_failed", "passo", i+1, "acao", st.Acao, "err", err)
			continue
		}
		return fmt.Errorf("passo %d (%s): %w", i+1, st.Acao, err)
	}
	return nil
}

func (r *Runner) runStep(ctx context.Context, b Browser, st Step, vars Vars, slow bool, log *slog.Logger) error {
	switch st.Acao {
	case ActionNavigate:
		return r.navigate(ctx, b, vars.Expand(st.Valor))
	case ActionPause:
		return sleep(ctx, time.Duration(st.Ms)*time.Millisecond)
	case ActionType:
		text := vars.Expand(st.Valor)
		if st.Host != "" {
			sctx, cancel := step(ctx)
			defer cancel()
			return b.TypeShadow(sctx, st.Host, st.Seletor, text)
		}
		return typeWithFallback(ctx, b, st.Selector(), text, slow, log)
	}

	sctx, cancel := step(ctx)
	defer cancel()
	switch st.Acao {
	case ActionClick:
		return b.Click(sctx, st.Selector())
	case ActionWait:
		return b.WaitVisible(sctx, st.Selector())
	case ActionEnter:
		return b.PressEnter(sctx, st.Selector())
	}
	return fmt.Errorf("unknown acao %q", st.Acao)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
