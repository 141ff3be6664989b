package checkout

import (
	"strings"
	"testing"

	"paysession-be/internal/payment"

	"github.com/stretchr/testify/assert"
)

func TestGetInstructions(t *testing.T) {
	t.Run("ReturnsTemplateForBankTransfer", func(t *testing.T) {
		instructions := GetInstructions(payment.MethodBankTransfer)
		assert.NotEmpty(t, instructions)

		found := false
		for _, instr := range instructions {
			if strings.Contains(instr, "{{order_id}}") {
				found = true
				break
			}
		}
		assert.True(t, found, "bank transfer instructions should carry the order id placeholder")
	})

	t.Run("ReturnsDefaultForUnknown", func(t *testing.T) {
		instructions := GetInstructions(payment.Method("UNKNOWN_METHOD"))
		assert.Len(t, instructions, 1)
	})
}

func TestInjectVariables(t *testing.T) {
	t.Run("ReplacesPlaceholders", func(t *testing.T) {
		template := []string{"Transfer {{amount}} with memo {{order_id}}."}
		vars := InstructionVars{
			"amount":   "30,000",
			"order_id": "ORD1",
		}

		result := InjectVariables(template, vars)

		assert.Equal(t, []string{"Transfer 30,000 with memo ORD1."}, result)
	})

	t.Run("LeavesUnknownPlaceholders", func(t *testing.T) {
		result := InjectVariables([]string{"Pay {{amount}}"}, InstructionVars{})
		assert.Equal(t, "Pay {{amount}}", result[0])
	})
}

func TestFormatAmount(t *testing.T) {
	cases := map[int64]string{
		0:       "0",
		999:     "999",
		1000:    "1,000",
		30000:   "30,000",
		1234567: "1,234,567",
		-4500:   "-4,500",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatAmount(in))
	}
}
