package telephony

import (
	"fmt"
	"strings"
)

// AnswerTwiML tells the carrier to open a bidirectional media stream
// to the given WebSocket URL and keep the call up.
func AnswerTwiML(streamURL string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Response>
  <Connect>
    <Stream url="%s" />
  </Connect>
  <Pause length="3600"/>
</Response>`, escapeXML(streamURL))
}

// HangupTwiML ends the call, optionally saying a final message first.
func HangupTwiML(farewell string) string {
	if farewell == "" {
		return `<?xml version="1.0" encoding="UTF-8"?>
<Response>
  <Hangup/>
</Response>`
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Response>
  <Say>%s</Say>
  <Hangup/>
</Response>`, escapeXML(farewell))
}

// EmptyTwiML acknowledges a webhook without further instructions.
func EmptyTwiML() string {
	return `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`
}

func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}
