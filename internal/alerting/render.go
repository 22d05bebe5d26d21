package alerting

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dev-bhaskar8/kekterminal/internal/engine"
)

// RenderTrigger formats the outbound alert message for a trigger event.
func RenderTrigger(event engine.TriggerEvent) string {
	alert := event.Alert
	label := alert.Label
	if label == "" {
		label = alert.Pool
	}

	verb := "risen above"
	if alert.Direction == engine.DirectionBelow {
		verb = "fallen below"
	}

	builder := strings.Builder{}
	builder.WriteString("🚨 Price Alert\n")
	builder.WriteString(fmt.Sprintf("Pool: %s\n", label))
	builder.WriteString(fmt.Sprintf("Price has %s your target of %s\n", verb, FormatPrice(alert.Target)))
	builder.WriteString(fmt.Sprintf("Current: %s\n", FormatPrice(event.Sample.Price)))
	builder.WriteString(fmt.Sprintf("Sampled: %s UTC", event.Sample.SampledAt.UTC().Format(time.RFC3339)))
	return builder.String()
}

// FormatPrice renders a USD price with precision scaled to its magnitude,
// so dust-priced tokens keep meaningful digits.
func FormatPrice(price decimal.Decimal) string {
	switch {
	case price.LessThan(decimal.New(1, -8)):
		return "$" + price.StringFixed(12)
	case price.LessThan(decimal.New(1, -2)):
		return "$" + price.StringFixed(8)
	case price.LessThan(decimal.New(1, 0)):
		return "$" + price.StringFixed(6)
	default:
		return "$" + price.StringFixed(4)
	}
}
