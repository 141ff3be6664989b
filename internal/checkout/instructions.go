package checkout

import (
	"strconv"
	"strings"

	"paysession-be/internal/payment"
)

var InstructionMap = map[payment.Method][]string{
	payment.MethodBankTransfer: {
		"Open your banking app or internet banking",
		"Transfer {{amount}} to {{bank}} account {{account}} ({{holder}})",
		"Enter {{order_id}} as the transfer memo so the payment can be matched",
		"The order is updated automatically once the transfer is confirmed",
	},
	payment.MethodVirtualAccount: {
		"Open your banking app and choose virtual account payment",
		"Pay exactly {{amount}} to the virtual account shown on the checkout page",
		"Keep the receipt until the order shows as paid",
	},
}

func GetInstructions(method payment.Method) []string {
	if steps, ok := InstructionMap[method]; ok {
		return steps
	}

	return []string{
		"Follow the payment instructions shown on this page",
	}
}

type InstructionVars map[string]string

func InjectVariables(
	steps []string,
	vars InstructionVars,
) []string {
	result := make([]string, 0, len(steps))

	for _, step := range steps {
		updated := step
		for key, value := range vars {
			updated = strings.ReplaceAll(
				updated,
				"{{"+key+"}}",
				value,
			)
		}
		result = append(result, updated)
	}

	return result
}

// FormatAmount renders whole currency units with thousands separators.
func FormatAmount(amount int64) string {
	s := strconv.FormatInt(amount, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
