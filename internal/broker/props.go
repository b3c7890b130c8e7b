package broker

import (
	"strconv"

	"github.com/queueops/jmsqctl/internal/models"
)

// MessageProperties builds the property map a selector evaluates against:
// the standard JMS-style header fields derived from the descriptor, plus
// every custom header with its value coerced to the richest type it parses
// as. Shared by session implementations; the core engines never call it.
func MessageProperties(m models.MessageDescriptor) map[string]any {
	props := map[string]any{
		"JMSMessageID":      m.ID,
		"JMSTimestamp":      m.Timestamp.UnixMilli(),
		"JMSXDeliveryCount": int64(m.DeliveryCount),
		"JMSRedelivered":    m.DeliveryCount > 1,
	}
	if m.Type != "" {
		props["JMSType"] = m.Type
	}
	for k, v := range m.Headers {
		props[k] = coerce(v)
	}
	return props
}

func coerce(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}
