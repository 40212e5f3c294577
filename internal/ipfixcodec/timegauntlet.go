package ipfixcodec

import "math"

// maxFlowTimeDeviation bounds the signed difference used to detect 32-bit
// up-time counter rollover, per §4.2: "Rollover ... is assumed when the
// signed difference of candidate up-time and the flow's start-up-time
// exceeds INT32_MAX." Grounded on skipfix.c's
// MAXIMUM_FLOW_TIME_DEVIATION = INT32_MAX.
const maxFlowTimeDeviation = math.MaxInt32

// rollover32 is one more than the maximum value a uint32 counter can hold
// before wrapping, used to correct a detected rollover. Grounded on
// skipfix.c's ROLLOVER32 = UINT32_MAX + 1.
const rollover32 = int64(1) << 32

// TimeFields carries whichever of the candidate time-encoding fields a
// template provides; zero/false means "not present". The codec populates
// this from the decoded record's raw field bytes before calling
// DeriveTimes.
type TimeFields struct {
	HaveSysUpTime        bool
	FlowStartSysUpTime   uint32
	FlowEndSysUpTime     uint32
	HaveSystemInitTime   bool
	SystemInitTimeMillis uint64

	HaveMillis      bool
	StartMillis     uint64
	EndMillis       uint64
	HaveEndMillis   bool

	HaveSeconds    bool
	StartSeconds   uint32
	EndSeconds     uint32
	HaveEndSeconds bool

	HaveNTPMicro      bool
	StartNTPMicro     uint64
	EndNTPMicro       uint64
	HaveEndNTPMicro   bool
	HaveNTPNano       bool
	StartNTPNano      uint64
	EndNTPNano        uint64
	HaveEndNTPNano    bool

	HaveDeltaMicro bool
	StartDeltaMicro uint32 // flowStartDeltaMicroseconds, relative to export time
	HaveEndDeltaMicro bool
	EndDeltaMicro   uint32

	HaveDuration bool
	DurationMillis uint32

	HaveStartOnly bool // a start-only field with no matching end (rule f)
	HaveEndOnly   bool // an end-only field with no matching start (rule g)
}

// DeriveTimes implements the §4.2 time gauntlet: it derives start_time and
// duration (both in milliseconds) from whichever candidate fields are
// present, in the stated priority order (a) through (h).
//
// exportTimeMillis is the stream's export time in milliseconds since the
// Unix epoch, used both for NetFlow-v9 up-time arithmetic and as the final
// fallback (rule h).
func DeriveTimes(f TimeFields, exportTimeMillis int64) (startMillis int64, durationMillis int64) {
	switch {
	case f.HaveSysUpTime && f.HaveSystemInitTime:
		return deriveFromSysUpTime(f, exportTimeMillis)

	case f.HaveMillis && f.HaveEndMillis:
		start := int64(f.StartMillis)
		return start, int64(f.EndMillis) - start

	case f.HaveSeconds && f.HaveEndSeconds:
		start := int64(f.StartSeconds) * 1000
		return start, int64(f.EndSeconds)*1000 - start

	case f.HaveNTPMicro && f.HaveEndNTPMicro:
		start := decodeNTPMicrosecondsMillis(f.StartNTPMicro)
		return start, decodeNTPMicrosecondsMillis(f.EndNTPMicro) - start

	case f.HaveNTPNano && f.HaveEndNTPNano:
		start := decodeNTPNanosecondsMillis(f.StartNTPNano)
		return start, decodeNTPNanosecondsMillis(f.EndNTPNano) - start

	case f.HaveDeltaMicro && f.HaveEndDeltaMicro:
		start := exportTimeMillis - int64(f.StartDeltaMicro)/1000
		end := exportTimeMillis - int64(f.EndDeltaMicro)/1000
		return start, end - start

	case f.HaveStartOnly && f.HaveDuration:
		start := startFromAnyField(f)
		return start, int64(f.DurationMillis)

	case f.HaveEndOnly:
		end := endFromAnyField(f)
		return end, 0

	default:
		return exportTimeMillis, 0
	}
}

// deriveFromSysUpTime implements rule (a): flowStartSysUpTime +
// systemInitTime, with NetFlow-v9 rollover handling. Grounded on
// skipfix.c's flowStartSysUpTime/flowEndSysUpTime/systemInitTimeMilliseconds
// handling.
func deriveFromSysUpTime(f TimeFields, exportTimeMillis int64) (int64, int64) {
	// Detect rollover of the start counter relative to the router's
	// current up-time at export (§4.2's general rollover rule).
	candidateUptime := exportTimeMillis - int64(f.SystemInitTimeMillis)
	startUptime := int64(f.FlowStartSysUpTime)
	if diff := candidateUptime - startUptime; diff > maxFlowTimeDeviation || diff < -maxFlowTimeDeviation {
		startUptime += rollover32
	}
	start := int64(f.SystemInitTimeMillis) + startUptime

	endUptime := int64(f.FlowEndSysUpTime)
	if f.FlowEndSysUpTime < f.FlowStartSysUpTime {
		// The 32-bit end counter wrapped past the start counter —
		// testable scenario §8.4.
		endUptime += rollover32
	}
	duration := endUptime - startUptime
	return start, duration
}

func startFromAnyField(f TimeFields) int64 {
	switch {
	case f.HaveMillis:
		return int64(f.StartMillis)
	case f.HaveSeconds:
		return int64(f.StartSeconds) * 1000
	case f.HaveNTPMicro:
		return decodeNTPMicrosecondsMillis(f.StartNTPMicro)
	case f.HaveNTPNano:
		return decodeNTPNanosecondsMillis(f.StartNTPNano)
	default:
		return 0
	}
}

func endFromAnyField(f TimeFields) int64 {
	switch {
	case f.HaveEndMillis:
		return int64(f.EndMillis)
	case f.HaveEndSeconds:
		return int64(f.EndSeconds) * 1000
	case f.HaveEndNTPMicro:
		return decodeNTPMicrosecondsMillis(f.EndNTPMicro)
	case f.HaveEndNTPNano:
		return decodeNTPNanosecondsMillis(f.EndNTPNano)
	default:
		return 0
	}
}
