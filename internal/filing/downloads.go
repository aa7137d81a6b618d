package filing

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Werneck0live/controle-certidoes/internal/textnorm"
)

// extensões de download em andamento (Chrome, Firefox, Edge, Safari)
var tempSuffixes = []string{".crdownload", ".tmp", ".part", ".partial", ".download"}

type WaitOptions struct {
	// trechos de nome que desqualificam o arquivo (ex.: "boleto"), além dos globais
	Forbidden []string
	Timeout   time.Duration // 0 usa o default do Filer
}

// WaitForDownload espera um arquivo novo (modificado depois de since) na pasta
// de downloads. Varre a cada PollInterval e também quando o fsnotify avisa.
// O arquivo só é aceito quando o tamanho se repete em duas varreduras.
// Se o arquivo sentinela existir ou aparecer, a espera é cancelada (e o sentinela removido).
// Sentinela antigo é limpo no Acquire, não aqui: o cancelamento pedido durante a
// navegação continua valendo quando a espera começa.
func (f *Filer) WaitForDownload(ctx context.Context, since time.Time, wo WaitOptions) (string, error) {
	dir := f.opts.DownloadsDir
	if _, err := os.Stat(dir); err != nil {
		return "", fmt.Errorf("downloads dir %s: %w", dir, err)
	}

	timeout := wo.Timeout
	if timeout <= 0 {
		timeout = f.opts.Timeout
	}
	forbidden := append(append([]string{}, f.opts.ForbiddenNames...), wo.Forbidden...)

	var events <-chan fsnotify.Event
	if w, err := fsnotify.NewWatcher(); err != nil {
		f.log.Warn("download_watch_unavailable", "err", err)
	} else {
		defer w.Close()
		if err := w.Add(dir); err != nil {
			f.log.Warn("download_watch_add_error", "dir", dir, "err", err)
		} else {
			events = w.Events
		}
	}

	ticker := time.NewTicker(f.opts.PollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	var lastPath string
	var lastSize int64 = -1

	check := func() (string, bool) {
		path, size, ok := newestCandidate(dir, since, forbidden)
		if !ok {
			lastPath, lastSize = "", -1
			return "", false
		}
		if path == lastPath && size == lastSize && size > 0 {
			return path, true
		}
		lastPath, lastSize = path, size
		return "", false
	}

	f.log.Info("download_wait_start", "dir", dir, "since", since, "timeout", timeout)
	for {
		if f.sentinelSet() {
			f.clearSentinel()
			f.log.Warn("download_wait_cancelled", "sentinel", f.opts.CancelSentinel)
			return "", ErrCancelled
		}
		if path, ok := check(); ok {
			f.log.Info("download_detected", "file", path, "size", lastSize)
			return path, nil
		}

		select {
		case <-ctx.Done():
			return "", context.Cause(ctx)
		case <-deadline.C:
			return "", fmt.Errorf("%w after %s", ErrDownloadTimeout, timeout)
		case <-ticker.C:
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			f.log.Debug("download_dir_event", "op", ev.Op.String(), "name", ev.Name)
		}
	}
}

// newestCandidate devolve o arquivo regular mais recente modificado depois de since,
// ignorando temporários, ocultos e nomes proibidos.
func newestCandidate(dir string, since time.Time, forbidden []string) (string, int64, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", 0, false
	}
	var (
		best     string
		bestSize int64
		bestMod  time.Time
	)
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		name := e.Name()
		if isTemporary(name) || isForbidden(name, forbidden) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		mod := info.ModTime()
		if !mod.After(since) {
			continue
		}
		if best == "" || mod.After(bestMod) {
			best, bestSize, bestMod = filepath.Join(dir, name), info.Size(), mod
		}
	}
	return best, bestSize, best != ""
}

func isTemporary(name string) bool {
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
		return true
	}
	lower := strings.ToLower(name)
	for _, s := range tempSuffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}

func isForbidden(name string, forbidden []string) bool {
	n := textnorm.Normalize(name)
	for _, f := range forbidden {
		if p := textnorm.Normalize(f); p != "" && strings.Contains(n, p) {
			return true
		}
	}
	return false
}

func (f *Filer) sentinelSet() bool {
	if f.opts.CancelSentinel == "" {
		return false
	}
	_, err := os.Stat(f.opts.CancelSentinel)
	return err == nil
}

func (f *Filer) clearSentinel() {
	if f.opts.CancelSentinel == "" {
		return
	}
	if err := os.Remove(f.opts.CancelSentinel); err != nil && !errors.Is(err, os.ErrNotExist) {
		f.log.Warn("sentinel_remove_error", "path", f.opts.CancelSentinel, "err", err)
	}
}

// WatchCancel devolve um ctx cancelado com causa ErrCancelled assim que o sentinela
// aparece. Cobre a emissão inteira (navegação, digitação e espera do download).
func (f *Filer) WatchCancel(ctx context.Context) (context.Context, context.CancelFunc) {
	cctx, cancel := context.WithCancelCause(ctx)
	stop := func() { cancel(context.Canceled) }
	if f.opts.CancelSentinel == "" {
		return cctx, stop
	}
	go func() {
		t := time.NewTicker(f.opts.PollInterval)
		defer t.Stop()
		for {
			select {
			case <-cctx.Done():
				return
			case <-t.C:
				if f.sentinelSet() {
					f.clearSentinel()
					f.log.Warn("emission_cancelled", "sentinel", f.opts.CancelSentinel)
					cancel(ErrCancelled)
					return
				}
			}
		}
	}()
	return cctx, stop
}

// Cancel cria o arquivo sentinela; a emissão em andamento termina na próxima varredura.
func (f *Filer) Cancel() error {
	if f.opts.CancelSentinel == "" {
		return errors.New("cancel sentinel not configured")
	}
	return os.WriteFile(f.opts.CancelSentinel, []byte(time.Now().Format(time.RFC3339)), 0o644)
}
