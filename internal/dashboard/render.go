package dashboard

import (
	"embed"
	"html/template"
	"io"

	"github.com/Werneck0live/controle-certidoes/internal/models"
)

//go:embed templates/*.html
var templatesFS embed.FS

var funcs = template.FuncMap{
	"date": func(c models.CertificateView) string {
		if c.DataValidade == nil {
			return "sem data"
		}
		return c.DataValidade.Format("02/01/2006")
	},
	"pendente": func(c models.CertificateView) bool {
		return c.StatusEspecial == models.StatusPendente
	},
	"statuses": func() []models.Status { return models.AllStatuses },
	"count":    func(s Summary, st models.Status) int { return s.Counts[st] },
}

var page = template.Must(template.New("dashboard.html").Funcs(funcs).ParseFS(templatesFS, "templates/dashboard.html"))

// Render escreve a página HTML do dashboard.
func Render(w io.Writer, s Summary) error {
	return page.Execute(w, s)
}
