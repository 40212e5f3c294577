package ipfixcodec

// ProbeQuirks is the per-source policy bitset of §3's GLOSSARY entry
// "Quirks": workarounds for known-wrong exporter behavior. The probe
// configuration object itself is the excluded collaborator of §6.4; this
// codec only consumes the quirks bits it exposes.
type ProbeQuirks uint32

const (
	// QuirksZeroPackets keeps zero-packet flows, which the codec otherwise
	// ignores (drops without an error), per §4.1.
	QuirksZeroPackets ProbeQuirks = 1 << iota
	// QuirksFirewallEvent enables the firewallEvent handling of §4.2.
	QuirksFirewallEvent
	// QuirksIPLess tolerates flows the exporter produced with no IP
	// address fields at all.
	QuirksIPLess
	// QuirksDebugFirewallEvents passes through the flowCreated/
	// flowUpdated/flowAlert events §4.2 otherwise drops silently; the
	// codec writes no log entry for them.
	QuirksDebugFirewallEvents
)

func (q ProbeQuirks) has(bit ProbeQuirks) bool { return q&bit != 0 }

// firewallEvent values, per the Cisco ASA NSEL convention this codec
// follows (the IPFIX firewallEvent information element, id 233).
const (
	firewallEventCreated uint8 = 1
	firewallEventDeleted uint8 = 2
	firewallEventDenied  uint8 = 3
	firewallEventUpdated uint8 = 5
	firewallEventAlert   uint8 = 4
)

// SidecarFirewallDenied is the sidecar field name used to mark a record
// produced from a flowDenied firewallEvent, per §4.2's "distinguished
// marker in the sidecar."
const SidecarFirewallDenied = "firewallDenied"

// applyFirewallQuirks implements §4.2's firewall-event handling. It
// reports whether the record should be kept (false means: drop silently).
func applyFirewallQuirks(quirks ProbeQuirks, event uint8, haveEvent bool) (keep bool, denied bool) {
	if !quirks.has(QuirksFirewallEvent) || !haveEvent {
		return true, false
	}
	switch event {
	case firewallEventDeleted:
		return true, false
	case firewallEventDenied:
		return true, true
	case firewallEventCreated, firewallEventUpdated, firewallEventAlert:
		return quirks.has(QuirksDebugFirewallEvents), false
	default:
		return true, false
	}
}
