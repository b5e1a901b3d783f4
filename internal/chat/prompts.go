package chat

import (
	"fmt"
	"strings"

	"github.com/kunskapsportal-search-api/internal/models"
)

// User-facing messages returned without a model answer
const (
	NoSourcesMessage = "Välj minst en förvaltning eller extern källa, eller aktivera webbsökning, " +
		"så att jag har något underlag att svara utifrån."
	EmptyAnswerMessage = "Jag kunde tyvärr inte formulera ett svar på din fråga just nu. " +
		"Försök gärna att omformulera frågan."
)

// SearchErrorMarker prefixes tool output that carries no usable results
const SearchErrorMarker = "[Search Error]"

const articleContentLimit = 20000

const sharedRules = `Regler:
- Svara på samma språk som användaren skriver på. Om språket är oklart, svara på svenska.
- Använd verktyget %[1]s för att hitta underlag innan du svarar.
- Hänvisa till källor inline som markdown-länkar, till exempel [Titel](URL).
- Använd endast URL:er exakt som de står i sökresultaten. Hitta aldrig på, ändra eller förkorta en URL.
- Om den första sökningen inte ger något användbart får du söka en gång till med en annan formulering.
- Du får göra högst %[2]d sökningar per fråga.
- Om underlaget inte räcker, säg det tydligt i stället för att gissa.`

// generalInstruction is the system instruction of a knowledge-base conversation
func generalInstruction(maxTurns int) string {
	return "Du är en hjälpsam assistent för kommunens kunskapsbank. Du svarar på frågor om styrdokument, " +
		"riktlinjer och rutiner utifrån de förvaltningar och externa källor som användaren har valt.\n\n" +
		fmt.Sprintf(sharedRules, ToolName, maxTurns)
}

// articleInstruction scopes the conversation to one document
func articleInstruction(article *models.ArticleContext, maxTurns int) string {
	var b strings.Builder
	b.WriteString("Du är en hjälpsam assistent som svarar på frågor om ett specifikt dokument i kommunens kunskapsbank. ")
	b.WriteString("Utgå i första hand från dokumentet nedan. Sök i kunskapsbanken endast när dokumentet inte räcker.\n\n")
	fmt.Fprintf(&b, sharedRules, ToolName, maxTurns)
	b.WriteString("\n\nDokument:\n")
	fmt.Fprintf(&b, "Titel: %s\n", article.Title)
	if article.URL != "" {
		fmt.Fprintf(&b, "URL: %s\n", article.URL)
	}
	if article.Department != "" {
		fmt.Fprintf(&b, "Förvaltning: %s\n", article.Department)
	}
	b.WriteString("Innehåll:\n")
	b.WriteString(truncate(strings.TrimSpace(article.Content), articleContentLimit))
	return b.String()
}

const nudgePrompt = "Svara på min senaste fråga. Sök i kunskapsbanken om du behöver underlag."

const forceAnswerPrompt = "Du har inte fler sökningar kvar. Svara nu på frågan utifrån de sökresultat " +
	"du redan har fått. Om underlaget inte räcker, säg det."

const groundingInstruction = "Du är en hjälpsam assistent för kommunens medarbetare. Använd webbsökning för att " +
	"hitta aktuell och tillförlitlig information. Svara på samma språk som användaren, i första hand svenska. " +
	"Lägg inte in källhänvisningar i texten, de visas separat."

// groundingPrompt asks the model to enhance an existing answer, or answers from scratch
func groundingPrompt(message, answer string) string {
	if answer == "" {
		return message
	}
	return fmt.Sprintf("Fråga: %s\n\nBefintligt svar från kunskapsbanken:\n%s\n\n"+
		"Komplettera svaret med information från webben endast om det tillför något väsentligt. "+
		"Behåll alla länkar från det befintliga svaret. Om webben inte tillför något, "+
		"returnera det befintliga svaret oförändrat.", message, answer)
}

// toolResultContent wraps formatted hits with the internal/external breakdown
func toolResultContent(query, formatted string, internal, external int) string {
	return fmt.Sprintf("Sökresultat för %q: %d träffar (%d interna, %d externa).\n"+
		"Prioritera inte externa källor bara för att de är mer detaljerade. "+
		"Interna styrdokument väger minst lika tungt.\n\n%s",
		query, internal+external, internal, external, formatted)
}

func emptySearchContent(query string) string {
	return fmt.Sprintf("%s Inga resultat för %q. Prova en annan formulering eller svara utifrån det du redan har.",
		SearchErrorMarker, query)
}

func failedSearchContent(query string) string {
	return fmt.Sprintf("%s Sökningen efter %q misslyckades. Prova en annan formulering eller svara utifrån det du redan har.",
		SearchErrorMarker, query)
}

func unknownToolContent(name string) string {
	return fmt.Sprintf("%s Okänt verktyg %q. Det enda tillgängliga verktyget är %s.", SearchErrorMarker, name, ToolName)
}

func missingQueryContent() string {
	return fmt.Sprintf("%s Sökfrågan saknas. Anropa %s med en query.", SearchErrorMarker, ToolName)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
