package filing

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Werneck0live/controle-certidoes/internal/fuzzy"
	"github.com/Werneck0live/controle-certidoes/internal/textnorm"
)

// ScoreStale: acima disso um arquivo existente é considerado versão antiga da mesma certidão.
const ScoreStale = 95

type Placement struct {
	Path          string   `json:"path"`
	CompanyFolder string   `json:"company_folder"`
	MatchScore    int      `json:"match_score"`
	MatchMethod   string   `json:"match_method"`
	Removed       []string `json:"removed,omitempty"`
}

// FileName: "Municipal Mobiliário" + ".PDF" -> "CERTIDAO MUNICIPAL MOBILIARIO.pdf".
func FileName(label, ext string) string {
	return "CERTIDAO " + textnorm.Normalize(label) + strings.ToLower(ext)
}

// Place move src para a pasta de certidões da empresa com o nome padronizado.
// As cópias antigas da mesma certidão só são apagadas depois que a nova está no lugar.
func (f *Filer) Place(src, companyName, cnpj, label string) (Placement, error) {
	if _, err := os.Stat(src); err != nil {
		return Placement{}, fmt.Errorf("downloaded file: %w", err)
	}
	match, err := f.FindCompanyFolder(companyName, cnpj)
	if err != nil {
		return Placement{}, err
	}
	dir, err := f.ResolveCertificatesDir(match.Path)
	if err != nil {
		return Placement{}, err
	}

	name := FileName(label, filepath.Ext(src))
	dest := filepath.Join(dir, name)

	if err := moveFile(src, dest); err != nil {
		f.log.Error("file_move_error", "src", src, "dest", dest, "err", err)
		return Placement{}, fmt.Errorf("move %s -> %s: %w", src, dest, err)
	}
	removed := f.removeStale(dir, name, dest)
	f.log.Info("file_placed", "dest", dest, "removed", len(removed))
	return Placement{
		Path:          dest,
		CompanyFolder: match.Path,
		MatchScore:    match.Score,
		MatchMethod:   match.Method,
		Removed:       removed,
	}, nil
}

// removeStale apaga arquivos cujo nome (sem extensão e sem dígitos) bate com o novo,
// exceto keep. "Certidão Federal (2).pdf" e "CERTIDAO FEDERAL.jpg" saem; "CERTIDAO FGTS.pdf" fica.
func (f *Filer) removeStale(dir, newName, keep string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	want := textnorm.NormalizeNoDigits(strings.TrimSuffix(newName, filepath.Ext(newName)))
	var removed []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if samePath(p, keep) || strings.HasPrefix(e.Name(), tempPrefix) {
			continue
		}
		base := textnorm.NormalizeNoDigits(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
		if fuzzy.Ratio(base, want) < ScoreStale {
			continue
		}
		if err := os.Remove(p); err != nil {
			f.log.Warn("stale_remove_error", "file", p, "err", err)
			continue
		}
		f.log.Info("stale_removed", "file", p)
		removed = append(removed, p)
	}
	return removed
}

func samePath(a, b string) bool {
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	return err1 == nil && err2 == nil && aa == bb
}

// rename é trocado nos testes para simular downloads e compartilhamento em volumes diferentes.
var rename = os.Rename

const tempPrefix = ".certidao-"

// moveFile tenta rename; entre volumes diferentes (downloads -> rede) copia para um
// temporário na pasta de destino e só então renomeia por cima de dest.
func moveFile(src, dest string) error {
	if err := rename(src, dest); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), tempPrefix+"*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	_ = tmp.Chmod(0o644)
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	in.Close()
	return os.Remove(src)
}
