package ipfixcodec

// ntpEpochOffsetSeconds is the number of seconds between the NTP epoch
// (1900-01-01) and the Unix epoch (1970-01-01), per §4.2's NTP decoding
// rule.
const ntpEpochOffsetSeconds = 2208988800

// microsecondFractionMask masks off the low 11 bits of the 32-bit NTP
// fraction field, per §4.2: "for dateTimeMicroseconds the low 11 bits MUST
// be masked off before dividing" — those bits are below microsecond
// resolution and exporters are not required to zero them.
const microsecondFractionMask = 0xFFFFF800

// decodeNTPMillis decodes a 64-bit NTP timestamp (upper 32 bits whole
// seconds since 1900-01-01, lower 32 bits a binary fraction of a second)
// into milliseconds since the Unix epoch. maskLow11 selects the
// dateTimeMicroseconds masking rule; dateTimeNanoseconds values decode at
// full fraction precision.
func decodeNTPMillis(ntp uint64, maskLow11 bool) int64 {
	seconds := int64(ntp>>32) - ntpEpochOffsetSeconds
	frac := uint32(ntp & 0xFFFFFFFF)
	if maskLow11 {
		frac &= microsecondFractionMask
	}
	fracMillis := (uint64(frac) * 1000) >> 32
	return seconds*1000 + int64(fracMillis)
}

// decodeNTPMicrosecondsMillis implements the testable property of §8:
// decode_ntp_usec((JAN_1970<<32)|0) == 0ms;
// decode_ntp_usec((JAN_1970<<32)|(1<<31)) == 500ms.
func decodeNTPMicrosecondsMillis(ntp uint64) int64 {
	return decodeNTPMillis(ntp, true)
}

// decodeNTPNanosecondsMillis decodes a dateTimeNanoseconds-encoded NTP
// value (no low-bit masking — nanosecond resolution uses the full
// fraction field).
func decodeNTPNanosecondsMillis(ntp uint64) int64 {
	return decodeNTPMillis(ntp, false)
}
