package rag

// Prompts are in Russian: the assistant serves residents of St. Petersburg
// and the indexed corpus is Russian-language city-service documentation.

const rewritePrompt = `Ты помогаешь искать информацию о городских услугах Санкт-Петербурга.
Переформулируй запрос пользователя так, чтобы он лучше подходил для поиска по базе знаний.
Сохрани смысл запроса, не добавляй новых тем.
Верни ТОЛЬКО переформулированный запрос, без пояснений и кавычек.

%sЗапрос: %s`

const broadenInstruction = `Предыдущий поиск не дал релевантных результатов.
Сделай запрос более общим, убери слишком специфичные детали.
`

const gradePrompt = `Оцени, относится ли фрагмент документа к запросу пользователя.

Запрос: %s

Фрагмент:
%s

Ответь ОДНИМ словом: "да" если фрагмент помогает ответить на запрос, иначе "нет".`

const generatePrompt = `Ты — городской помощник Санкт-Петербурга. Ответь на вопрос жителя,
используя ТОЛЬКО приведённые фрагменты базы знаний. Не выдумывай факты.
Если фрагменты не содержат ответа, честно скажи об этом.

Фрагменты:
%s

Вопрос: %s

Ответ:`

// NoContextAnswer is returned when nothing relevant was found in the corpus.
const NoContextAnswer = `К сожалению, не удалось найти информацию по вашему запросу в базе знаний. Попробуйте переформулировать вопрос или уточнить детали.`
