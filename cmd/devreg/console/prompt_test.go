package console

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPromptText(t *testing.T) {
	assert.Equal(t, "write ALS_CONF? [N/y]: ", promptText("write ALS_CONF?", []string{No, Yes}))
	assert.Equal(t, "pick [A/b/c]: ", promptText("pick", []string{"a", "b", "c"}))
}

func TestPick(t *testing.T) {
	tests := []struct {
		response string
		expected string
	}{
		{"", No},
		{"y", Yes},
		{" Y ", Yes},
		{"n", No},
		{"maybe", No},
	}
	for _, test := range tests {
		t.Run(test.response, func(t *testing.T) {
			assert.Equal(t, test.expected, pick(test.response, []string{No, Yes}))
		})
	}
}
