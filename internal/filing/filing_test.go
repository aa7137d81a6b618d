package filing

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkdirs(t *testing.T, root string, dirs ...string) {
	t.Helper()
	for _, d := range dirs {
		require.NoError(t, os.MkdirAll(filepath.Join(root, d), 0o755))
	}
}

func writeFile(t *testing.T, path, content string, mod time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func newTestFiler(t *testing.T) (*Filer, string, string) {
	t.Helper()
	share := t.TempDir()
	downloads := t.TempDir()
	f := New(Options{
		SharePath:      share,
		DownloadsDir:   downloads,
		CancelSentinel: filepath.Join(t.TempDir(), "cancelar"),
		PollInterval:   10 * time.Millisecond,
		Timeout:        2 * time.Second,
	})
	return f, share, downloads
}

func TestMatchFolder(t *testing.T) {
	folders := []string{
		"PADARIA SÃO JOÃO",
		"MERCADO BOM PRECO LTDA",
		"MERCADO BOM GOSTO",
		"TRANSPORTES SILVA - 11222333000181",
		"ACME COMERCIO",
		"ACME SERVICOS",
	}

	cases := []struct {
		name, cnpj string
		want       string
		method     string
	}{
		{"Padaria Sao Joao", "", "PADARIA SÃO JOÃO", "exact"},
		{"Mercado Bom Preço", "", "MERCADO BOM PRECO LTDA", "exact_sem_sufixo"},
		{"Transportadora Qualquer", "11.222.333/0001-81", "TRANSPORTES SILVA - 11222333000181", "cnpj"},
	}
	for _, tc := range cases {
		m, ok := matchFolder(tc.name, tc.cnpj, folders)
		require.True(t, ok, tc.name)
		assert.Equal(t, tc.want, m.Name, tc.name)
		assert.Equal(t, tc.method, m.Method, tc.name)
	}

	// ambíguo: duas ACME muito parecidas, nenhuma exata
	_, ok := matchFolder("ACME", "", folders)
	assert.False(t, ok)

	_, ok = matchFolder("Oficina do Zé", "", folders)
	assert.False(t, ok)
}

func TestMatchFolder_TokenSort(t *testing.T) {
	m, ok := matchFolder("Silva & Filhos Transportes", "", []string{"TRANSPORTES SILVA FILHOS", "PADARIA CENTRAL"})
	require.True(t, ok)
	assert.Equal(t, "token_sort", m.Method)
	assert.Equal(t, ScoreExact, m.Score)
}

func TestMatchFolder_SuffixConflict(t *testing.T) {
	_, ok := matchFolder("ACME LTDA", "", []string{"ACME S/A"})
	assert.False(t, ok)

	// um lado sem sufixo continua valendo
	m, ok := matchFolder("ACME", "", []string{"ACME S/A"})
	require.True(t, ok)
	assert.Equal(t, "exact_sem_sufixo", m.Method)
}

func TestMatchFolder_WRatioNeedsFolderWords(t *testing.T) {
	// pasta com palavra que o nome não tem: outra empresa
	_, ok := matchFolder("Construtora Alfa Ltda", "", []string{"CONSTRUTORA BETA LTDA"})
	assert.False(t, ok)

	// nome mais longo que a pasta: aceito
	m, ok := matchFolder("Mercado Bom Preço Comércio de Alimentos", "", []string{"MERCADO BOM PRECO", "PADARIA CENTRAL"})
	require.True(t, ok)
	assert.Equal(t, "MERCADO BOM PRECO", m.Name)
	assert.Equal(t, "wratio", m.Method)
}

func TestCoveredBy(t *testing.T) {
	assert.True(t, coveredBy("MERCADO BOM PRECO LTDA", "MERCADO BOM PRECO COMERCIO"))
	assert.True(t, coveredBy("MERCADO BOM PRECO COM DE ALIMENTOS", "MERCADO BOM PRECO COMERCIO DE ALIMENTOS"))
	assert.False(t, coveredBy("CONSTRUTORA BETA", "CONSTRUTORA ALFA"))
}

func TestStripLegalSuffixes(t *testing.T) {
	assert.Equal(t, "ACME", stripLegalSuffixes("ACME LTDA ME"))
	assert.Equal(t, "ACME", stripLegalSuffixes("ACME S A"))
	assert.Equal(t, "LTDA", stripLegalSuffixes("LTDA"))

	bare, sfx := splitLegalSuffixes("ACME COMERCIO LTDA ME")
	assert.Equal(t, "ACME COMERCIO", bare)
	assert.Equal(t, "LTDA ME", sfx)
}

func TestFindCompanyFolder_ShareMissing(t *testing.T) {
	f := New(Options{SharePath: filepath.Join(t.TempDir(), "nao-existe")})
	_, err := f.FindCompanyFolder("ACME", "")
	assert.ErrorIs(t, err, ErrShareUnavailable)
}

func TestResolveCertificatesDir(t *testing.T) {
	f, share, _ := newTestFiler(t)

	// docs + certidões com acento
	mkdirs(t, share, "A/DOCS. EMPRESA/CERTIDÕES")
	dir, err := f.ResolveCertificatesDir(filepath.Join(share, "A"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(share, "A", "DOCS. EMPRESA", "CERTIDÕES"), dir)

	// docs sem certidões: cria CERTIDOES dentro de docs
	mkdirs(t, share, "B/DOCUMENTOS")
	dir, err = f.ResolveCertificatesDir(filepath.Join(share, "B"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(share, "B", "DOCUMENTOS", "CERTIDOES"), dir)
	assert.DirExists(t, dir)

	// certidões na raiz da empresa, docs sem certidões
	mkdirs(t, share, "C/DOCS", "C/Certidoes")
	dir, err = f.ResolveCertificatesDir(filepath.Join(share, "C"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(share, "C", "Certidoes"), dir)

	// nada: cria na raiz
	mkdirs(t, share, "D")
	dir, err = f.ResolveCertificatesDir(filepath.Join(share, "D"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(share, "D", "CERTIDOES"), dir)
}

func TestWaitForDownload_Detects(t *testing.T) {
	f, _, downloads := newTestFiler(t)
	since := time.Now().Add(-time.Minute)

	// antigo, temporário e proibido são ignorados
	writeFile(t, filepath.Join(downloads, "velho.pdf"), "x", since.Add(-time.Hour))
	writeFile(t, filepath.Join(downloads, "certidao.pdf.crdownload"), "x", time.Now())
	writeFile(t, filepath.Join(downloads, "Boleto_123.pdf"), "x", time.Now())
	writeFile(t, filepath.Join(downloads, "certidao.pdf"), "conteudo", time.Now())

	got, err := f.WaitForDownload(context.Background(), since, WaitOptions{Forbidden: []string{"boleto"}})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(downloads, "certidao.pdf"), got)
}

func TestWaitForDownload_FileArrivesLater(t *testing.T) {
	f, _, downloads := newTestFiler(t)
	since := time.Now().Add(-time.Second)

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = os.WriteFile(filepath.Join(downloads, "cnd.pdf"), []byte("pdf"), 0o644)
	}()

	got, err := f.WaitForDownload(context.Background(), since, WaitOptions{})
	require.NoError(t, err)
	assert.Equal(t, "cnd.pdf", filepath.Base(got))
}

func TestWaitForDownload_Timeout(t *testing.T) {
	f, _, _ := newTestFiler(t)
	_, err := f.WaitForDownload(context.Background(), time.Now(), WaitOptions{Timeout: 50 * time.Millisecond})
	assert.True(t, errors.Is(err, ErrDownloadTimeout), "err=%v", err)
}

func TestWaitForDownload_Sentinel(t *testing.T) {
	f, _, _ := newTestFiler(t)

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = f.Cancel()
	}()
	_, err := f.WaitForDownload(context.Background(), time.Now(), WaitOptions{})
	assert.ErrorIs(t, err, ErrCancelled)
	assert.NoFileExists(t, f.opts.CancelSentinel)
}

// cancelar antes de a espera começar (durante a navegação) também vale
func TestWaitForDownload_SentinelBeforeWait(t *testing.T) {
	f, _, _ := newTestFiler(t)
	require.NoError(t, f.Cancel())

	_, err := f.WaitForDownload(context.Background(), time.Now(), WaitOptions{Timeout: time.Second})
	assert.ErrorIs(t, err, ErrCancelled)
	assert.NoFileExists(t, f.opts.CancelSentinel)
}

func TestAcquire_ClearsStaleSentinel(t *testing.T) {
	f, _, _ := newTestFiler(t)
	require.NoError(t, f.Cancel())

	release, err := f.Acquire(context.Background())
	require.NoError(t, err)
	defer release()
	assert.NoFileExists(t, f.opts.CancelSentinel)
}

func TestWatchCancel(t *testing.T) {
	f, _, _ := newTestFiler(t)
	ctx, stop := f.WatchCancel(context.Background())
	defer stop()

	require.NoError(t, f.Cancel())
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("ctx not cancelled by sentinel")
	}
	assert.ErrorIs(t, context.Cause(ctx), ErrCancelled)
	assert.NoFileExists(t, f.opts.CancelSentinel)

	// parar o watcher não é cancelamento
	ctx2, stop2 := f.WatchCancel(context.Background())
	stop2()
	assert.ErrorIs(t, context.Cause(ctx2), context.Canceled)
	assert.NotErrorIs(t, context.Cause(ctx2), ErrCancelled)
}

func TestWaitForDownload_Context(t *testing.T) {
	f, _, _ := newTestFiler(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := f.WaitForDownload(ctx, time.Now(), WaitOptions{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPlace(t *testing.T) {
	f, share, downloads := newTestFiler(t)
	mkdirs(t, share, "MERCADO BOM PRECO LTDA/DOCUMENTOS EMPRESA/CERTIDOES")
	certDir := filepath.Join(share, "MERCADO BOM PRECO LTDA", "DOCUMENTOS EMPRESA", "CERTIDOES")

	old := time.Now().Add(-48 * time.Hour)
	writeFile(t, filepath.Join(certDir, "Certidão Federal (2).pdf"), "velha", old)
	writeFile(t, filepath.Join(certDir, "CERTIDAO FGTS.pdf"), "fgts", old)
	writeFile(t, filepath.Join(certDir, "CERTIDAO MUNICIPAL GERAL.pdf"), "geral", old)

	src := filepath.Join(downloads, "relatorio.PDF")
	writeFile(t, src, "nova", time.Now())

	p, err := f.Place(src, "Mercado Bom Preço", "", "Federal")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(certDir, "CERTIDAO FEDERAL.pdf"), p.Path)
	assert.Len(t, p.Removed, 1)
	assert.NoFileExists(t, src)
	assert.NoFileExists(t, filepath.Join(certDir, "Certidão Federal (2).pdf"))
	assert.FileExists(t, filepath.Join(certDir, "CERTIDAO FGTS.pdf"))
	assert.FileExists(t, filepath.Join(certDir, "CERTIDAO MUNICIPAL GERAL.pdf"))

	b, err := os.ReadFile(p.Path)
	require.NoError(t, err)
	assert.Equal(t, "nova", string(b))

	// mobiliária não derruba a geral
	src2 := filepath.Join(downloads, "mob.pdf")
	writeFile(t, src2, "mob", time.Now())
	_, err = f.Place(src2, "Mercado Bom Preço", "", "Municipal Mobiliário")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(certDir, "CERTIDAO MUNICIPAL GERAL.pdf"))
	assert.FileExists(t, filepath.Join(certDir, "CERTIDAO MUNICIPAL MOBILIARIO.pdf"))
}

func tempLeftovers(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var out []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), tempPrefix) {
			out = append(out, e.Name())
		}
	}
	return out
}

// se a nova cópia não entra no lugar, a antiga continua lá
func TestPlace_MoveFailsKeepsOldCopy(t *testing.T) {
	f, share, downloads := newTestFiler(t)
	certDir := filepath.Join(share, "PADARIA SÃO JOÃO", "CERTIDOES")
	mkdirs(t, share, "PADARIA SÃO JOÃO/CERTIDOES/CERTIDAO FEDERAL.pdf/bloqueio")

	oldCopy := filepath.Join(certDir, "CERTIDAO FEDERAL (1).pdf")
	writeFile(t, oldCopy, "velha", time.Now().Add(-48*time.Hour))
	src := filepath.Join(downloads, "certidao.pdf")
	writeFile(t, src, "nova", time.Now())

	_, err := f.Place(src, "Padaria Sao Joao", "", "Federal")
	require.Error(t, err)
	assert.FileExists(t, oldCopy)
	assert.FileExists(t, src)
	assert.Empty(t, tempLeftovers(t, certDir))
}

// downloads e compartilhamento em volumes diferentes: copia e substitui
func TestPlace_CrossDevice(t *testing.T) {
	f, share, downloads := newTestFiler(t)
	certDir := filepath.Join(share, "PADARIA SÃO JOÃO", "CERTIDOES")
	mkdirs(t, share, "PADARIA SÃO JOÃO/CERTIDOES")
	writeFile(t, filepath.Join(certDir, "CERTIDAO FEDERAL.pdf"), "velha", time.Now().Add(-48*time.Hour))
	writeFile(t, filepath.Join(certDir, "Certidao Federal 2.jpg"), "velha", time.Now().Add(-48*time.Hour))

	rename = func(oldpath, newpath string) error {
		if strings.HasPrefix(oldpath, downloads) {
			return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: errors.New("invalid cross-device link")}
		}
		return os.Rename(oldpath, newpath)
	}
	t.Cleanup(func() { rename = os.Rename })

	src := filepath.Join(downloads, "certidao.pdf")
	writeFile(t, src, "nova", time.Now())

	p, err := f.Place(src, "Padaria Sao Joao", "", "Federal")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(certDir, "CERTIDAO FEDERAL.pdf"), p.Path)
	assert.Equal(t, []string{filepath.Join(certDir, "Certidao Federal 2.jpg")}, p.Removed)
	assert.NoFileExists(t, src)
	assert.Empty(t, tempLeftovers(t, certDir))

	b, err := os.ReadFile(p.Path)
	require.NoError(t, err)
	assert.Equal(t, "nova", string(b))
}

func TestPlace_CompanyNotFound(t *testing.T) {
	f, _, downloads := newTestFiler(t)
	src := filepath.Join(downloads, "x.pdf")
	writeFile(t, src, "x", time.Now())

	_, err := f.Place(src, "Empresa Inexistente", "", "FGTS")
	assert.ErrorIs(t, err, ErrCompanyFolderNotFound)
	assert.FileExists(t, src)
}

func TestAcquire(t *testing.T) {
	f, _, _ := newTestFiler(t)
	release, err := f.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = f.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release2, err := f.Acquire(context.Background())
	require.NoError(t, err)
	release2()
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "CERTIDAO MUNICIPAL MOBILIARIO.pdf", FileName("Municipal Mobiliário", ".PDF"))
	assert.Equal(t, "CERTIDAO FGTS", FileName("FGTS", ""))
}
