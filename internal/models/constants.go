package models

const (
	ChunkSeparator    = "\n\n"
	DocIDPrefix       = "doc_"
	DefaultTopK       = 3
	ScoreFormat       = "[Score: %.4f]\n%s"
	StudyMaterialKey  = "study_material"
	QuestionKey       = "question"
	DefaultCollection = "study_material"
	LocationPrefix    = "vectorstore_"
	NoContextNotice   = "No relevant study material was found for this question."
	RoleUser          = "user"
	RoleAssistant     = "assistant"
)

// metadata keys stored alongside each document
const (
	MetaSource      = "source"
	MetaChunkID     = "chunk_id"
	MetaChunkSize   = "chunk_size"
	MetaTotalChunks = "total_chunks"
)

var (
	StudyPromptTemplate = `You are an expert tutor. The following is study material and a student's question about it.
Please provide a clear, detailed, and educational response.

Study Material:
{{.study_material}}

Student Question: {{.question}}

Please:
1. Identify the relevant section(s) from the study material
2. Provide a comprehensive but clear explanation
3. Include examples where appropriate
4. Break down complex concepts into simpler terms
5. If the question relates to technical specifications or protocols, explain their practical applications
6. Reference specific parts of the study material to support your answer
7. If the topic involves multiple concepts, show how they interconnect
8. Suggest follow-up questions the student might want to explore

Remember to:
- Be clear and concise
- Use simple language while maintaining technical accuracy
- Provide real-world examples when possible
- Break down complex topics into manageable parts
- Encourage critical thinking

Response:`
)
