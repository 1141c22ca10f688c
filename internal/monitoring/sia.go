package monitoring

import (
	"fmt"
	"time"
)

// EncodeSIA builds a SIA DC-09 style message:
//
//	\n<ACCT[4]>"<SEQ[4]>"<HH:MM:SS>"<CODE>[<zone>]
//
// CODE is the two-letter event code from the fixed table ("BA" for
// unmapped types). The [zone] suffix is present only when a zone
// identifier accompanies the event. seq is the per-connection message
// sequence, rendered as 4 digits.
func EncodeSIA(account string, seq int, eventType, zone string, at time.Time) string {
	code, ok := siaCodes[eventType]
	if !ok {
		code = siaDefault
	}

	zoneSuffix := ""
	if zone != "" {
		zoneSuffix = "[" + zone + "]"
	}

	return fmt.Sprintf("\n%s\"%04d\"%s\"%s%s",
		padAccount(account),
		seq,
		at.Format("15:04:05"),
		code,
		zoneSuffix,
	)
}
