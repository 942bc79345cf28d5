package qa

import (
	"fmt"
	"strings"

	"github.com/dossier-ai/dossier/internal/notes"
)

const systemPromptTemplate = `You are a representative of the candidate and you are answering questions about your CV from a recruiter.
The goal is to provide detailed answers to the questions asked, using the information from the CV and any additional PDFs available.
Here are some notes on the CV:
%s

And here are some relevant parts of the CV and additional PDFs relating to the questions:
%s

Answer the recruiter's question in the context of the CV and additional PDFs. You should also suggest follow-up questions that the recruiter might ask based on your answer. Record your reply with the questionAnswer tool. Think through your reply carefully, step by step.`

// buildSystemPrompt fills the QA template with the joined notes and the
// retrieved context text.
func buildSystemPrompt(nts []notes.Note, retrievedText string) string {
	lines := make([]string, len(nts))
	for i, n := range nts {
		lines[i] = n.Text
	}
	return fmt.Sprintf(systemPromptTemplate, strings.Join(lines, "\n"), retrievedText)
}
