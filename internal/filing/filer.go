// Package filing arquiva a certidão baixada na pasta da empresa no
// compartilhamento de rede: acha a pasta da empresa por aproximação de nome,
// escolhe a subpasta de certidões, espera o download aparecer e move o
// arquivo com o nome padronizado.
package filing

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

var (
	ErrShareUnavailable      = errors.New("network share not available")
	ErrCompanyFolderNotFound = errors.New("company folder not found on network share")
	ErrDownloadTimeout       = errors.New("timed out waiting for download")
	ErrCancelled             = errors.New("download wait cancelled")
)

// Limiares de aceitação da pasta da empresa.
const (
	ScoreExact  = 100
	ScoreTokens = 95
	ScoreFuzzy  = 85

	// com WRatio, o segundo colocado precisa ficar pelo menos isso abaixo do primeiro
	ambiguityMargin = 5
)

type Options struct {
	SharePath      string
	DownloadsDir   string
	CancelSentinel string
	PollInterval   time.Duration
	Timeout        time.Duration
	ForbiddenNames []string
	Logger         *slog.Logger
}

type Filer struct {
	opts Options
	log  *slog.Logger
	sem  chan struct{}
}

func New(opts Options) *Filer {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Filer{
		opts: opts,
		log:  log.With("cmp", "filing"),
		sem:  make(chan struct{}, 1),
	}
}

func (f *Filer) DownloadsDir() string { return f.opts.DownloadsDir }

// Acquire reserva a pasta de downloads: só um download é detectado e
// arquivado por vez, senão duas emissões podem pegar o mesmo arquivo.
// Um sentinela que sobrou de um cancelamento anterior é descartado aqui.
func (f *Filer) Acquire(ctx context.Context) (release func(), err error) {
	select {
	case f.sem <- struct{}{}:
		if f.sentinelSet() {
			f.log.Info("stale_sentinel_cleared", "sentinel", f.opts.CancelSentinel)
			f.clearSentinel()
		}
		return func() { <-f.sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
