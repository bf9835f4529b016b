package models

const (
	// ContextSeparator delimits retrieved chunk blocks inside the prompt.
	ContextSeparator = "\n---\n"

	// NoResultsAnswer is returned when a query matches nothing in the store.
	NoResultsAnswer = "No relevant documents found for this query."
)

var (
	AnswerPromptTemplate = `Answer the question using only the context below.
<context>
%s
</context>
Question: %s
If the answer is not contained in the context, say that the provided documents do not contain the answer. Do not use any outside knowledge.
`
)
