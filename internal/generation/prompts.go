package generation

// systemPrompt instructs the model to answer strictly from the supplied
// context and to cite sources in the exact bracket form the citation
// extractor parses.
const systemPrompt = `You are a helpful assistant that answers questions using only the provided context.

Rules:
- Answer using ONLY information from the context below. If the context does not contain the answer, say so plainly.
- Cite every source you use, inline, in exactly this form: [Source: filename]
- Keep answers concise and factual. Do not invent sources or details.`

// userPromptTemplate wraps the retrieved context and the user's question.
const userPromptTemplate = `Context:

%s

Question: %s`

// noResultsAnswer is returned without calling the model when retrieval
// finds nothing relevant.
const noResultsAnswer = "No relevant documents were found for your question. " +
	"Try rephrasing it, or ingest more documents first."

// degradedAnswerHeader prefixes the fallback answer assembled when the model
// is unavailable after all retries.
const degradedAnswerHeader = "The language model is currently unavailable, so here is the raw retrieved context instead of a generated answer:"
