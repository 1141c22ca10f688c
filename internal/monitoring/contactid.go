package monitoring

import "strings"

// EncodeContactID builds a Contact ID (SIA DC-05) message.
//
// Layout, fixed-width: ACCT[4] MT[2] Q[1] CODE[4] GG[2] ZZZ[3]
//   - ACCT: 4-digit account number, zero-padded
//   - MT:   message type, always "18" (event report)
//   - Q:    qualifier, "3" for *_restore event types, otherwise "1"
//   - CODE: 4-digit event code from the fixed table, "1570" unmapped
//   - GG:   group/partition, always "00"
//   - ZZZ:  3-digit zone number; non-numeric identifiers normalise to
//     "001", empty to "000"
//
// Receivers parse by offset, so every field must keep its exact width.
func EncodeContactID(account, eventType, zone string) string {
	qualifier := "1"
	if strings.HasSuffix(eventType, "_restore") {
		qualifier = "3"
		eventType = strings.TrimSuffix(eventType, "_restore")
	}

	code, ok := contactIDCodes[eventType]
	if !ok {
		code = contactIDDefault
	}

	var b strings.Builder
	b.WriteString(padAccount(account))
	b.WriteString("18")
	b.WriteString(qualifier)
	b.WriteString(code)
	b.WriteString("00")
	b.WriteString(normalizeZone(zone))
	return b.String()
}
