package monitoring

import "strings"

// Monitoring event types. These are the receiver-facing vocabulary, not
// the audit-log vocabulary; the alarm coordinator maps between them.
const (
	EventArmAway    = "arm_away"
	EventArmHome    = "arm_home"
	EventDisarm     = "disarm"
	EventTriggered  = "triggered"
	EventEntryDelay = "entry_delay"
	EventDuress     = "duress"
	EventFire       = "fire"
	EventMedical    = "medical"
	EventPanic      = "panic"
	EventTamper     = "tamper"
	EventLowBattery = "low_battery"
	EventACLoss     = "ac_loss"
	EventTest       = "test"
)

// contactIDCodes maps event types to Ademco Contact ID event codes.
// The leading digit is the qualifier class baked into the standard
// tables (1 = new event, 3 = closing).
var contactIDCodes = map[string]string{
	EventArmAway:    "3401", // Armed Away
	EventArmHome:    "3441", // Armed Stay
	EventDisarm:     "1401", // Disarm by User
	EventTriggered:  "1130", // Burglary
	EventEntryDelay: "1134", // Entry/Exit Delay
	EventDuress:     "1121", // Duress Alarm
	EventFire:       "1110", // Fire Alarm
	EventMedical:    "1100", // Medical Alarm
	EventPanic:      "1120", // Panic Alarm
	EventTamper:     "1383", // Sensor Tamper
	EventLowBattery: "1384", // Low Battery
	EventACLoss:     "1301", // AC Power Loss
	EventTest:       "1602", // Periodic Test
}

// contactIDDefault is the code for unmapped event types.
const contactIDDefault = "1570"

// siaCodes maps event types to SIA two-letter event codes.
var siaCodes = map[string]string{
	EventArmAway:    "CA", // Closing (Away)
	EventArmHome:    "CG", // Closing (Stay)
	EventDisarm:     "OP", // Opening
	EventTriggered:  "BA", // Burglary Alarm
	EventEntryDelay: "BE", // Burglary Entry/Exit
	EventDuress:     "HA", // Hold-up/Duress
	EventFire:       "FA", // Fire Alarm
	EventPanic:      "PA", // Panic Alarm
	EventTest:       "RP", // Automatic Test
}

// siaDefault is the code for unmapped event types.
const siaDefault = "BA"

// padAccount left-pads an account number to 4 digits.
func padAccount(account string) string {
	return leftPad(account, 4)
}

// normalizeZone converts a zone identifier to the 3-digit field Contact
// ID expects: empty → "000", non-numeric → "001", else zero-padded.
func normalizeZone(zone string) string {
	if zone == "" {
		return "000"
	}
	if !isDigits(zone) {
		return "001"
	}
	return leftPad(zone, 3)
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}

func leftPad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}
