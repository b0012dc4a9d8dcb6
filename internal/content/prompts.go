// Package content turns a transcript into social post text: the prompt sent
// to a text-generation provider, parsing of its reply and flattening of the
// result.
package content

import "strings"

// SystemPrompt is sent as the system message with every generation request.
const SystemPrompt = "You are a professional social media content creator specializing in LinkedIn posts."

const postPromptTemplate = `You are a professional LinkedIn content creator known for creating viral, engaging posts.

Create a compelling LinkedIn post based on the following transcript. The post should follow best practices for LinkedIn engagement:

1. Start with a powerful, attention-grabbing hook (1-2 sentences)
2. Use short, punchy paragraphs (1-2 sentences each) with plenty of white space
3. Include storytelling elements or examples that illustrate key points
4. End with a thought-provoking question or clear call to action
5. Include 3-5 relevant hashtags

Format the response in JSON with these fields:
- hook: A powerful, attention-grabbing opening statement or question (1-2 sentences)
- body: The main content broken into short paragraphs (use \n\n between paragraphs)
- callToAction: A clear call to action or thought-provoking question (1 sentence)
- hashtags: An array of 3-5 relevant hashtags (without the # symbol)

Make the post sound conversational, direct, and authentic - like a real person sharing valuable insights.

Transcript: {{transcript}}`

// PostPrompt embeds transcript in the fixed post prompt.
func PostPrompt(transcript string) string {
	return strings.Replace(postPromptTemplate, "{{transcript}}", strings.TrimSpace(transcript), 1)
}
