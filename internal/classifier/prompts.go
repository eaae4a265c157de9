package classifier

const firstTurnMarker = "This is the first turn of the conversation."

const contextHeader = "Previous turns:\n"

const contextBlock = "Question %d: %s\nAnswer %d: %s"

const classificationPrompt = `You are an expert in conversation quality analysis. Assess the type and value of the user's question below.

%s

Current question: %s

Analyze:
1. Question type (question_type):
   - clarifying: asks for an explanation or an example
   - deepening: digs into details or explores approaches
   - emotional: seeks help or emotional support
   - technical: how-to or troubleshooting
   - off-topic: digression or small talk

2. Value level (value_level):
   - high: likely to produce a useful answer
   - medium: moderate value
   - low: meaningless or repetitive

3. Whether it builds on the previous turns (builds_on_previous): true/false
4. Whether it shifts the topic (topic_shift): true/false
5. Reason (reason): a short justification

Return a JSON object with exactly these fields: question_type, value_level, builds_on_previous, topic_shift, reason.`
