package mail

import (
	"fmt"
	"html/template"
	"strings"

	"doubot/internal/domain"
)

const dateLayout = "02/01/2006"

func digestSubject(d domain.Digest, prefix string) string {
	date := d.Date.Format(dateLayout)
	if len(d.Publications) == 0 {
		return fmt.Sprintf("%s Nenhuma publicação relevante - %s", prefix, date)
	}
	return fmt.Sprintf("%s %d publicação(ões) relevante(s) - %s", prefix, len(d.Publications), date)
}

// hasSummaries reports whether at least one publication carries an AI
// summary; the bulletins add provenance notes only in that case.
func hasSummaries(d domain.Digest) bool {
	for _, pub := range d.Publications {
		if pub.Summary != "" {
			return true
		}
	}
	return false
}

func renderText(d domain.Digest, withAI bool) string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	line("BOLETIM DOU FISCAL/TRIBUTÁRIO - %s", d.Date.Format(dateLayout))
	line("%s", strings.Repeat("=", 50))
	line("")

	if len(d.Publications) == 0 {
		line("Nenhuma publicação relevante encontrada para os critérios atuais.")
		line("")
	} else {
		line("Total de publicações: %d", len(d.Publications))
		line("")
		for i, pub := range d.Publications {
			line("%d. %s", i+1, pub.Title)
			if pub.Organ != "" {
				line("   Órgão: %s", pub.Organ)
			}
			if !pub.PublishedAt.IsZero() {
				line("   Data: %s", pub.PublishedAt.Format(dateLayout))
			}
			if withAI && pub.Summary != "" {
				line("   Resumo: %s", pub.Summary)
			}
			line("   URL: %s", pub.URL)
			line("")
		}
	}

	line("%s", strings.Repeat("-", 50))
	line("INFORMAÇÕES DA BUSCA:")
	line("Período: %s", d.Search.Period)
	line("Seções: %s", d.Search.Section)
	line("Frases: %s...", truncateRunes(strings.Join(d.Search.Phrases, ", "), 100))

	if withAI {
		line("")
		line("Resumos gerados automaticamente por IA.")
		line("Sempre confira o texto oficial no DOU.")
	}

	line("")
	line("Este boletim foi gerado automaticamente pelo Robô DOU.")

	return b.String()
}

type htmlData struct {
	Date         string
	Count        int
	Publications []htmlPublication
	Period       string
	Section      string
	Phrases      string
	WithAI       bool
}

type htmlPublication struct {
	Title   string
	Organ   string
	Kind    string
	Number  string
	Date    string
	Section string
	Summary string
	URL     string
}

func renderHTML(d domain.Digest, withAI bool) (string, error) {
	data := htmlData{
		Date:    d.Date.Format(dateLayout),
		Count:   len(d.Publications),
		Period:  d.Search.Period,
		Section: d.Search.Section,
		Phrases: truncateRunes(strings.Join(d.Search.Phrases, "; "), 150),
		WithAI:  withAI,
	}

	for _, pub := range d.Publications {
		entry := htmlPublication{
			Title:   pub.Title,
			Organ:   pub.Organ,
			Kind:    pub.Kind,
			Number:  pub.Number(),
			Section: pub.Section,
			URL:     pub.URL,
		}
		if !pub.PublishedAt.IsZero() {
			entry.Date = pub.PublishedAt.Format(dateLayout)
		}
		if withAI {
			entry.Summary = pub.Summary
		}
		data.Publications = append(data.Publications, entry)
	}

	var b strings.Builder
	if err := digestTemplate.Execute(&b, data); err != nil {
		return "", fmt.Errorf("mail: render html bulletin: %w", err)
	}
	return b.String(), nil
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

var digestTemplate = template.Must(template.New("digest").Parse(`<!DOCTYPE html>
<html lang="pt-BR">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Boletim DOU Fiscal/Tributário - {{.Date}}</title>
<style>
body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; line-height: 1.6; color: #333; max-width: 800px; margin: 0 auto; padding: 20px; background-color: #f8f9fa; }
.header { background: linear-gradient(135deg, #1a237e 0%, #283593 100%); color: white; padding: 25px; border-radius: 8px; margin-bottom: 25px; text-align: center; }
.header h1 { margin: 0; font-size: 24px; font-weight: bold; }
.header .date { font-size: 14px; opacity: 0.9; margin-top: 5px; }
.stats { background: #e3f2fd; padding: 15px; border-radius: 6px; margin: 20px 0; text-align: center; font-size: 14px; color: #1565c0; }
.publication { background: white; padding: 20px; margin: 15px 0; border-left: 4px solid #2196f3; border-radius: 4px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
.publication-title { font-size: 18px; font-weight: bold; color: #1a237e; margin-bottom: 10px; line-height: 1.4; }
.publication-meta { font-size: 13px; color: #666; margin-bottom: 12px; display: flex; flex-wrap: wrap; gap: 15px; }
.badge { background: #e3f2fd; color: #1565c0; padding: 3px 8px; border-radius: 12px; font-size: 12px; font-weight: bold; }
.summary { background: #f5f5f5; padding: 12px; border-radius: 4px; margin: 12px 0; border-left: 3px solid #4caf50; font-style: italic; }
.summary::before { content: "📌 "; font-weight: bold; }
.footer { text-align: center; margin-top: 30px; padding: 20px; color: #666; font-size: 12px; border-top: 1px solid #ddd; }
.btn { display: inline-block; background: #2196f3; color: white; padding: 8px 16px; text-decoration: none; border-radius: 4px; font-weight: bold; font-size: 14px; margin: 10px 5px; }
.no-results { background: white; padding: 30px; text-align: center; border-radius: 6px; margin: 20px 0; }
.search-info { background: #f5f5f5; padding: 15px; border-radius: 4px; margin: 20px 0; font-size: 13px; }
@media (max-width: 600px) {
  body { padding: 10px; }
  .publication { padding: 15px; }
  .publication-title { font-size: 16px; }
  .publication-meta { flex-direction: column; gap: 5px; }
}
</style>
</head>
<body>
<div class="header">
<h1>📰 Boletim Fiscal DOU</h1>
<div class="date">{{.Date}}</div>
</div>
{{if .Publications}}<div class="stats">
📊 {{.Count}} publicação(ões) relevante(s) encontrada(s)
</div>
{{range .Publications}}<div class="publication">
<div class="publication-title">{{.Title}}</div>
<div class="publication-meta">
{{if .Organ}}<span>🏛️ {{.Organ}}</span>{{end}}
{{if .Kind}}<span class="badge">{{.Kind}}</span>{{end}}
{{if .Number}}<span class="badge">#{{.Number}}</span>{{end}}
{{if .Date}}<span>📅 {{.Date}}</span>{{end}}
{{if .Section}}<span>📄 Seção {{.Section}}</span>{{end}}
</div>
{{if .Summary}}<div class="summary">{{.Summary}}</div>
{{end}}<div style="text-align: right; margin-top: 15px;">
<a href="{{.URL}}" class="btn" target="_blank" rel="noopener noreferrer">🔗 Acessar Publicação Oficial</a>
</div>
</div>
{{end}}{{else}}<div class="no-results">
<h3>📭 Nenhuma publicação relevante</h3>
<p>Não foram encontradas publicações relevantes para os critérios de busca atuais.</p>
</div>
{{end}}<div class="search-info">
<h4 style="margin-top: 0; color: #555;">🔍 Critérios da Busca</h4>
<p><strong>Período:</strong> {{.Period}}</p>
<p><strong>Seções:</strong> {{.Section}}</p>
<p><strong>Frases buscadas:</strong> {{.Phrases}}...</p>
{{if .WithAI}}<p style="font-size: 12px; color: #666; margin-top: 10px;">
<em>✨ Resumos gerados automaticamente por IA. Sempre consulte o texto oficial no DOU para verificação.</em>
</p>
{{end}}</div>
<div class="footer">
<p>🤖 Boletim gerado automaticamente pelo Robô DOU</p>
<p style="font-size: 11px; color: #999; margin-top: 15px;">Para ajustar os critérios de busca ou destinatários, edite o config.yml do serviço.</p>
</div>
</body>
</html>
`))
