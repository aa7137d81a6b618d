package filing

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Werneck0live/controle-certidoes/internal/fuzzy"
	"github.com/Werneck0live/controle-certidoes/internal/textnorm"
)

// subpastas de documentos, em ordem de preferência
var docsVariants = []string{
	"DOCUMENTOS EMPRESA", "DOCS. EMPRESA", "DOC. EMPRESA",
	"DOCUMENTOS", "DOCS", "DOCS EMPRESA", "DOC EMPRESA",
}

var certVariants = []string{
	"CERTIDOES", "CERTIDÕES", "CERTIDAO", "CERTIDÃO",
	"CERTIDOES NEGATIVAS", "CERTIDÕES NEGATIVAS",
}

const certDirName = "CERTIDOES"

// sufixos societários ignorados na comparação exata
var legalSuffixes = map[string]bool{
	"LTDA": true, "ME": true, "EPP": true, "EIRELI": true, "SA": true, "S A": true, "MEI": true, "SS": true,
}

type FolderMatch struct {
	Path   string
	Name   string
	Score  int
	Method string // exact, exact_sem_sufixo, cnpj, token_sort, wratio
}

// FindCompanyFolder procura a pasta da empresa no compartilhamento.
// Ordem: nome igual (normalizado) -> nome igual sem sufixo societário (se os sufixos
// não conflitam) -> CNPJ no nome da pasta -> TokenSortRatio >= 95 -> WRatio >= 85
// desde que não ambíguo e sem palavra da pasta ausente no nome. Na dúvida não arquiva.
func (f *Filer) FindCompanyFolder(name, cnpj string) (FolderMatch, error) {
	folders, err := listDirs(f.opts.SharePath)
	if err != nil {
		return FolderMatch{}, fmt.Errorf("%w: %s: %v", ErrShareUnavailable, f.opts.SharePath, err)
	}
	m, ok := matchFolder(name, cnpj, folders)
	if !ok {
		f.log.Warn("company_folder_not_found", "empresa", name, "candidatos", len(folders))
		return FolderMatch{}, fmt.Errorf("%w: %s", ErrCompanyFolderNotFound, name)
	}
	m.Path = filepath.Join(f.opts.SharePath, m.Name)
	f.log.Info("company_folder_found", "empresa", name, "pasta", m.Name, "score", m.Score, "metodo", m.Method)
	return m, nil
}

func matchFolder(name, cnpj string, folders []string) (FolderMatch, bool) {
	target := textnorm.Normalize(name)
	if target == "" || len(folders) == 0 {
		return FolderMatch{}, false
	}

	for _, d := range folders {
		if textnorm.Normalize(d) == target {
			return FolderMatch{Name: d, Score: ScoreExact, Method: "exact"}, true
		}
	}

	bare, sfx := splitLegalSuffixes(target)
	for _, d := range folders {
		dBare, dSfx := splitLegalSuffixes(textnorm.Normalize(d))
		// "ACME LTDA" e "ACME S A" são empresas diferentes
		if dBare == bare && (sfx == "" || dSfx == "" || sfx == dSfx) {
			return FolderMatch{Name: d, Score: ScoreExact, Method: "exact_sem_sufixo"}, true
		}
	}

	if digits := textnorm.Digits(cnpj); len(digits) == 14 {
		for _, d := range folders {
			if strings.Contains(textnorm.Digits(d), digits) {
				return FolderMatch{Name: d, Score: ScoreExact, Method: "cnpj"}, true
			}
		}
	}

	if m, ok := fuzzy.ExtractOne(name, folders, fuzzy.TokenSortRatio, ScoreTokens); ok {
		return FolderMatch{Name: m.Choice, Score: m.Score, Method: "token_sort"}, true
	}

	all := fuzzy.ExtractAll(name, folders, fuzzy.WRatio, ScoreFuzzy)
	if len(all) == 0 {
		return FolderMatch{}, false
	}
	if len(all) > 1 && all[0].Score-all[1].Score < ambiguityMargin {
		return FolderMatch{}, false
	}
	if !coveredBy(all[0].Choice, target) {
		return FolderMatch{}, false
	}
	return FolderMatch{Name: all[0].Choice, Score: all[0].Score, Method: "wratio"}, true
}

// palavras que não distinguem uma empresa da outra
var fillerTokens = map[string]bool{"DE": true, "DA": true, "DO": true, "DAS": true, "DOS": true, "E": true}

// coveredBy: toda palavra distintiva da pasta aparece no nome, igual, abreviada
// ("COM" de "COMERCIO") ou com erro de digitação (Ratio >= 80).
// "CONSTRUTORA BETA" não cobre "CONSTRUTORA ALFA".
func coveredBy(folder, normalizedName string) bool {
	bare, _ := splitLegalSuffixes(textnorm.Normalize(folder))
	nameToks := strings.Fields(normalizedName)
	for _, tok := range strings.Fields(bare) {
		if fillerTokens[tok] || textnorm.Digits(tok) == tok {
			continue
		}
		found := false
		for _, nt := range nameToks {
			if nt == tok || (len(tok) >= 3 && strings.HasPrefix(nt, tok)) || fuzzy.Ratio(nt, tok) >= 80 {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func stripLegalSuffixes(normalized string) string {
	bare, _ := splitLegalSuffixes(normalized)
	return bare
}

// splitLegalSuffixes separa "ACME LTDA ME" em "ACME" e "LTDA ME".
func splitLegalSuffixes(normalized string) (bare, suffixes string) {
	toks := strings.Fields(normalized)
	var sfx []string
	for len(toks) > 1 {
		last := toks[len(toks)-1]
		if legalSuffixes[last] {
			sfx = append([]string{last}, sfx...)
			toks = toks[:len(toks)-1]
			continue
		}
		// "S A" vira dois tokens
		if len(toks) > 2 && legalSuffixes[toks[len(toks)-2]+" "+last] {
			sfx = append([]string{toks[len(toks)-2], last}, sfx...)
			toks = toks[:len(toks)-2]
			continue
		}
		break
	}
	return strings.Join(toks, " "), strings.Join(sfx, " ")
}

// ResolveCertificatesDir devolve (criando se preciso) a pasta de certidões da empresa.
// Se não conseguir criar, usa a própria pasta base.
func (f *Filer) ResolveCertificatesDir(companyDir string) (string, error) {
	base := companyDir
	if sub, ok := findVariant(companyDir, docsVariants); ok {
		base = filepath.Join(companyDir, sub)
	}

	if sub, ok := findVariant(base, certVariants); ok {
		return filepath.Join(base, sub), nil
	}
	if base != companyDir {
		if sub, ok := findVariant(companyDir, certVariants); ok {
			return filepath.Join(companyDir, sub), nil
		}
	}

	dir := filepath.Join(base, certDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		f.log.Warn("certidoes_dir_create_error", "dir", dir, "err", err)
		if _, statErr := os.Stat(base); statErr != nil {
			return "", fmt.Errorf("company dir %s: %w", base, statErr)
		}
		return base, nil
	}
	f.log.Info("certidoes_dir_created", "dir", dir)
	return dir, nil
}

// findVariant acha a primeira variante (na ordem da lista) que existe como subpasta de dir.
func findVariant(dir string, variants []string) (string, bool) {
	subs, err := listDirs(dir)
	if err != nil {
		return "", false
	}
	byNorm := make(map[string]string, len(subs))
	for _, s := range subs {
		n := textnorm.Normalize(s)
		if _, seen := byNorm[n]; !seen {
			byNorm[n] = s
		}
	}
	for _, v := range variants {
		if s, ok := byNorm[textnorm.Normalize(v)]; ok {
			return s, true
		}
	}
	return "", false
}

func listDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	return out, nil
}
