package llm

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kvant/advisor/internal/models"
)

// System-prompt variants for the investment consultant. The no-context
// variant is how "nothing relevant was found" propagates into the final
// answer: the model is told to decline rather than improvise.
const (
	SystemWithContext = `Ты - профессиональный консультант по инвестиционным продуктам.

Твоя задача:
- Отвечать на вопросы клиентов об инвестиционных паях, ЗПИФ и инвестиционных услугах
- Использовать только предоставленную информацию из базы знаний
- Давать точные и профессиональные ответы
- Если информации нет в базе знаний - честно сказать об этом
- Не давать финансовых советов, только информацию о продуктах

Стиль: деловой, но понятный для клиентов.`

	SystemNoContext = `Ты - профессиональный консультант по инвестиционным продуктам.

В базе знаний не найдено релевантной информации по вопросу клиента.
Честно скажи, что не можешь дать точный ответ, и предложи обратиться к специалистам.
Не выдумывай факты и не давай финансовых советов.`
)

// BuilderConfig represents the configuration for the prompt builder.
type BuilderConfig struct {
	MaxChars          int
	SystemTemplate    string
	NoContextTemplate string
}

// Builder assembles a bounded-length prompt from the query and retrieved
// chunks. Build is a pure function of its inputs.
type Builder struct {
	config BuilderConfig
}

func NewBuilder(config BuilderConfig) *Builder {
	if config.MaxChars == 0 {
		config.MaxChars = 6000
	}
	if config.SystemTemplate == "" {
		config.SystemTemplate = SystemWithContext
	}
	if config.NoContextTemplate == "" {
		config.NoContextTemplate = SystemNoContext
	}
	return &Builder{config: config}
}

// Build concatenates chunk texts in ranked order, dropping lowest-ranked
// chunks once the character budget is exceeded. The surviving chunks keep
// their order. The budget is best-effort at the top: when the highest-ranked
// chunk alone exceeds MaxChars it is still included, so a non-empty
// retrieval never produces an empty context. With no results at all, the
// no-context system variant is selected and the context list stays empty.
func (b *Builder) Build(query string, results []models.RetrievalResult) models.Prompt {
	if len(results) == 0 {
		return models.Prompt{
			System:    b.config.NoContextTemplate,
			UserQuery: query,
		}
	}

	var chunks []models.Chunk
	total := 0
	for _, r := range results {
		n := utf8.RuneCountInString(r.Chunk.Text)
		if total+n > b.config.MaxChars && len(chunks) > 0 {
			break
		}
		chunks = append(chunks, r.Chunk)
		total += n
	}

	return models.Prompt{
		System:        b.config.SystemTemplate,
		ContextChunks: chunks,
		UserQuery:     query,
	}
}

// ContextText renders the grounding context the way it is shown to the
// model, one chunk per block.
func ContextText(chunks []models.Chunk) string {
	var sb strings.Builder
	for i, c := range chunks {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(c.Text)
	}
	return sb.String()
}

// RenderUser produces the user-message content for a prompt, picking the
// context or no-context wording.
func RenderUser(p models.Prompt) string {
	if !p.HasContext() {
		return fmt.Sprintf(`Вопрос клиента: %s

В базе знаний не найдено релевантной информации. Ответь что не можешь дать точный ответ и предложи обратиться к специалистам.`, p.UserQuery)
	}

	return fmt.Sprintf(`Информация из базы знаний:

%s

Вопрос клиента: %s

Ответь на основе предоставленной информации.`, ContextText(p.ContextChunks), p.UserQuery)
}
