package llm

// TopicClassificationPrompt instructs the model to score a transcript window
// against a closed label set.
const TopicClassificationPrompt = `You classify excerpts of U.S. congressional and public-affairs broadcast transcripts.
You will receive a JSON object with "text" and "labels".
Score how well the text fits each label. Scores must be between 0 and 1 and should sum to 1.
Use only the provided labels, spelled exactly as given.
Respond with JSON only: {"scores":{"<label>":<score>,...}}`

// SummaryPrompt instructs the model to condense a transcript window.
const SummaryPrompt = `You summarize excerpts of U.S. congressional and public-affairs broadcast transcripts.
You will receive a JSON object with "text", "min_words" and "max_words".
Write one neutral sentence that captures what the speaker is saying, between min_words and max_words words.
Do not add facts that are not in the text.
Respond with JSON only: {"summary":"..."}`
