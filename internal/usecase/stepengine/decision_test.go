package stepengine

import (
	"testing"

	"task-agent/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecision_Fences(t *testing.T) {
	cases := map[string]string{
		"plain":            `{"ability":{"name":"finish","args":{"reason":"done"}}}`,
		"json fence":       "```json\n{\"ability\":{\"name\":\"finish\",\"args\":{\"reason\":\"done\"}}}\n```",
		"inline fence":     "```json{\"ability\":{\"name\":\"finish\",\"args\":{\"reason\":\"done\"}}}```",
		"bare fence":       "```\n{\"ability\":{\"name\":\"finish\",\"args\":{\"reason\":\"done\"}}}\n```",
		"upper tag":        "```JSON\n{\"ability\":{\"name\":\"finish\",\"args\":{\"reason\":\"done\"}}}```",
		"surrounding text": "Here you go:\n{\"ability\":{\"name\":\"finish\",\"args\":{\"reason\":\"done\"}}}\nThanks",
	}
	for name, answer := range cases {
		t.Run(name, func(t *testing.T) {
			d, err := ParseDecision(answer)
			require.NoError(t, err)
			assert.Equal(t, "finish", d.ActionName())
			assert.Equal(t, "done", d.ActionArgs()["reason"])
		})
	}
}

func TestParseDecision_ControlCharactersInStrings(t *testing.T) {
	answer := "{\"thoughts\":{\"speak\":\"line one\nline two\"},\"ability\":{\"name\":\"write_file\",\"args\":{\"file_path\":\"a.py\",\"data\":\"print(1)\n\tprint(2)\"}}}"

	d, err := ParseDecision(answer)
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", d.Speak())
	assert.Equal(t, "print(1)\n\tprint(2)", d.ActionArgs()["data"])
}

func TestParseDecision_Rejects(t *testing.T) {
	for _, answer := range []string{"", "   ", "not json", "[1,2,3]", `"finish"`, "```json\n```", "{broken"} {
		_, err := ParseDecision(answer)
		assert.ErrorIs(t, err, entity.ErrDecode, "answer %q", answer)
	}
}

func TestParseDecision_WrongShapes(t *testing.T) {
	d, err := ParseDecision(`{"thoughts":"x","ability":{"name":5,"args":"y"}}`)
	require.NoError(t, err)
	assert.Nil(t, d.Thoughts)
	assert.Equal(t, "", d.ActionName())
	assert.Empty(t, d.ActionArgs())

	d, err = ParseDecision(`{"thoughts":{"speak":"hi","plan":["a","b"]}}`)
	require.NoError(t, err)
	assert.Nil(t, d.Ability)
	assert.Equal(t, "hi", d.Speak())
	assert.Equal(t, []any{"a", "b"}, d.Thoughts.Plan)
}

func TestEscapeControlChars(t *testing.T) {
	assert.Equal(t, `{"a":"x\ny"}`, escapeControlChars("{\"a\":\"x\ny\"}"))
	assert.Equal(t, "{\n\"a\": 1}", escapeControlChars("{\n\"a\": 1}"))
	assert.Equal(t, `{"a":"q\"\n"}`, escapeControlChars("{\"a\":\"q\\\"\n\"}"))
	assert.Equal(t, `{"a":"\u0001"}`, escapeControlChars("{\"a\":\"\x01\"}"))
}

func TestRenderOutput(t *testing.T) {
	assert.Equal(t, "", renderOutput(nil))
	assert.Equal(t, "text", renderOutput("text"))
	assert.Equal(t, "hi", renderOutput([]byte("hi")))
	assert.Equal(t, "a\uFFFDb", renderOutput([]byte("a\xffb")))
	assert.Equal(t, `["a","b"]`, renderOutput([]string{"a", "b"}))
}

func TestInvalidAbilityMessage(t *testing.T) {
	msg := invalidAbilityMessage([]string{"write_file", "finish"})
	assert.Equal(t, "You've used an invalid ability name. Make sure you specify only a valid ability name in your output. "+
		"Remember, you only have access to the following abilities: ['write_file', 'finish']", msg)
}
