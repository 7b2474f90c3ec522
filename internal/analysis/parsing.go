package analysis

import (
	"strings"

	"biaseval/pkg/models"
)

const punctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// replyAnswer extracts the model's answer from the first completion of a
// reply: lowercased, with surrounding whitespace removed. When
// stripPunctuation is set, surrounding punctuation is removed as well,
// which matters for elicited answers the model tends to close with a
// quote mark. Returns false when the reply holds no completions.
func replyAnswer(reply models.Reply, stripPunctuation bool) (string, bool) {
	if len(reply.Choices) == 0 {
		return "", false
	}
	cutset := " \t\n\r\v\f"
	if stripPunctuation {
		cutset += punctuation
	}
	return strings.ToLower(strings.Trim(reply.Choices[0].Message.Content, cutset)), true
}
