package content

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/alkime/voicepost/internal/domain"
)

// Outcome records which path produced a set of Fields.
type Outcome string

const (
	// OutcomeParsed means the reply was valid JSON.
	OutcomeParsed Outcome = "parsed"
	// OutcomeRecovered means fields were pulled out of malformed JSON.
	OutcomeRecovered Outcome = "recovered"
	// OutcomeHeuristic means nothing usable came back and the transcript
	// itself was split into a post.
	OutcomeHeuristic Outcome = "heuristic_fallback"
)

// Generic values used by the heuristic fallback.
const (
	FallbackCallToAction = "What are your thoughts on this?"
)

// FallbackHashtags returns the hashtags used by the heuristic fallback.
func FallbackHashtags() []string {
	return []string{"content", "socialmedia", "thoughts"}
}

// Fields are the structured parts of a generated post.
type Fields struct {
	Hook         string   `json:"hook"`
	Body         string   `json:"body"`
	CallToAction string   `json:"callToAction"`
	Hashtags     []string `json:"hashtags"`
}

// Empty reports whether both hook and body are blank.
func (f Fields) Empty() bool {
	return strings.TrimSpace(f.Hook) == "" && strings.TrimSpace(f.Body) == ""
}

var (
	hookPattern     = regexp.MustCompile(`hook["\s:]+([^"]*?)[",$]`)
	bodyPattern     = regexp.MustCompile(`body["\s:]+([^"]*?)[",$]`)
	ctaPattern      = regexp.MustCompile(`callToAction["\s:]+([^"]*?)[",$]`)
	hashtagsPattern = regexp.MustCompile(`hashtags["\s:]+\[(.*?)\]`)
	fencePattern    = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
)

// Parse extracts Fields from a provider reply. It never fails: when neither
// JSON decoding nor pattern recovery yields a hook or body, the transcript
// is split heuristically.
func Parse(raw, transcript string) (Fields, Outcome) {
	fields, outcome := parseReply(raw)

	fields.Hook = strings.TrimSpace(fields.Hook)
	fields.Body = strings.TrimSpace(fields.Body)
	fields.CallToAction = strings.TrimSpace(fields.CallToAction)
	fields.Hashtags = domain.NormalizeHashtags(fields.Hashtags)

	if fields.Empty() {
		return Heuristic(transcript), OutcomeHeuristic
	}

	return fields, outcome
}

func parseReply(raw string) (Fields, Outcome) {
	text := stripFence(raw)

	var reply struct {
		Hook         string       `json:"hook"`
		Body         string       `json:"body"`
		CallToAction string       `json:"callToAction"`
		Hashtags     flexibleTags `json:"hashtags"`
	}

	if err := json.Unmarshal([]byte(text), &reply); err == nil {
		return Fields{
			Hook:         reply.Hook,
			Body:         reply.Body,
			CallToAction: reply.CallToAction,
			Hashtags:     reply.Hashtags,
		}, OutcomeParsed
	}

	return recoverFields(text), OutcomeRecovered
}

// recoverFields pulls fields out of text that looks like JSON but does not decode.
func recoverFields(text string) Fields {
	var f Fields

	if m := hookPattern.FindStringSubmatch(text); m != nil {
		f.Hook = m[1]
	}

	if m := bodyPattern.FindStringSubmatch(text); m != nil {
		f.Body = m[1]
	}

	if m := ctaPattern.FindStringSubmatch(text); m != nil {
		f.CallToAction = m[1]
	}

	if m := hashtagsPattern.FindStringSubmatch(text); m != nil {
		for _, tag := range strings.Split(m[1], ",") {
			f.Hashtags = append(f.Hashtags, strings.ReplaceAll(strings.TrimSpace(tag), `"`, ""))
		}
	}

	return f
}

// Heuristic builds a post from the transcript alone: the first sentence is
// the hook and the rest is the body.
func Heuristic(transcript string) Fields {
	sentences := strings.Split(strings.TrimSpace(transcript), ".")

	return Fields{
		Hook:         strings.TrimSpace(sentences[0]) + ".",
		Body:         strings.TrimSpace(strings.Join(sentences[1:], ".")),
		CallToAction: FallbackCallToAction,
		Hashtags:     FallbackHashtags(),
	}
}

func stripFence(raw string) string {
	text := strings.TrimSpace(raw)

	if m := fencePattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}

	return text
}

// flexibleTags accepts hashtags as a JSON array or as one string of
// space or comma separated tags.
type flexibleTags []string

func (t *flexibleTags) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*t = list
		return nil
	}

	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return err
	}

	*t = strings.FieldsFunc(joined, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\t'
	})

	return nil
}
