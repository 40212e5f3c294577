package filterpipe

import (
	"fmt"

	"github.com/silkflow/silkflow/internal/ipfixcodec"
	"github.com/silkflow/silkflow/internal/rwrec"
)

// MergeHeaders implements §4.3's "header merging" rule: annotation and
// invocation entries from every input are copied through verbatim, and
// the inputs' sidecar descriptors are unioned. A name registered with
// incompatible types across inputs aborts the pipeline, per §4.1's
// sidecar invariant and §4.3's "conflicting sidecar types across inputs
// abort the pipeline."
//
// The caller opens each output stream with the returned entries plus an
// EntrySidecarDescriptor entry built from the returned descriptor
// (ipfixcodec.EncodeSidecarDescriptor), before constructing a Pipeline —
// header merging happens once, up front, not per record.
func MergeHeaders(inputs []Input) ([]ipfixcodec.HeaderEntry, *rwrec.SidecarDescriptor, error) {
	var entries []ipfixcodec.HeaderEntry
	sidecar := rwrec.NewSidecarDescriptor()

	for _, in := range inputs {
		h := in.Stream.Header()
		for _, e := range h.Entries {
			if e.Type == ipfixcodec.EntryAnnotation || e.Type == ipfixcodec.EntryInvocation {
				entries = append(entries, e)
			}
		}
		merged, err := rwrec.Merge(sidecar, in.Stream.SidecarDescriptor())
		if err != nil {
			return nil, nil, fmt.Errorf("merging header for input %q: %w", in.Name, err)
		}
		sidecar = merged
	}

	return entries, sidecar, nil
}
