package automation

import (
	"context"
	"strings"
	"time"
)

// By é a estratégia de localização do campo, como gravada nas regras de município.
type By string

const (
	ByCSS   By = "css_selector"
	ByID    By = "id"
	ByName  By = "name"
	ByXPath By = "xpath"
)

func ParseBy(s string) By {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "id":
		return ByID
	case "name":
		return ByName
	case "xpath":
		return ByXPath
	default:
		return ByCSS
	}
}

type Selector struct {
	Value string
	By    By
}

func Sel(value, by string) Selector {
	return Selector{Value: strings.TrimSpace(value), By: ParseBy(by)}
}

func (s Selector) Empty() bool { return s.Value == "" }

func (s Selector) String() string { return string(s.By) + "=" + s.Value }

// alternatives devolve o seletor configurado seguido de CSS e name com o
// mesmo valor; portais trocam o atributo entre versões.
func (s Selector) alternatives() []Selector {
	out := []Selector{s}
	for _, by := range []By{ByCSS, ByName} {
		if by != s.By {
			out = append(out, Selector{Value: s.Value, By: by})
		}
	}
	return out
}

// Browser é o mínimo que a emissão precisa de um navegador.
type Browser interface {
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, sel Selector) error
	WaitVisible(ctx context.Context, sel Selector) error
	Type(ctx context.Context, sel Selector, text string) error
	// TypeSlow digita caractere a caractere (portais com máscara que perdem dígitos)
	TypeSlow(ctx context.Context, sel Selector, text string, delay time.Duration) error
	// TypeShadow preenche um input dentro do shadowRoot de host
	TypeShadow(ctx context.Context, host, inner, text string) error
	PressEnter(ctx context.Context, sel Selector) error
	SetDownloadDir(ctx context.Context, dir string) error
	Close() error
}

// BrowserFactory abre uma sessão nova por emissão.
type BrowserFactory func(ctx context.Context) (Browser, error)
