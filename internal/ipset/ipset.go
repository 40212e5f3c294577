// Package ipset implements a minimal sorted set of addresses, the
// `rwaggbagtool --to-ipset` conversion target of §4.5.
package ipset

import (
	"encoding/binary"
	"errors"
	"io"
	"net/netip"
	"sort"

	"github.com/silkflow/silkflow/internal/ipfixcodec"
	"github.com/silkflow/silkflow/internal/rwrec"
)

// Set is an ordered set of addresses, stored as a sorted slice of their
// 16-byte IPv4-mapped-IPv6 forms so v4 and v6 members compare uniformly,
// matching the Aggregate Bag engine's own IP-ordering rule.
type Set struct {
	addrs [][16]byte
}

// New returns an empty Set.
func New() *Set {
	return &Set{}
}

func key16(a netip.Addr) [16]byte { return a.As16() }

func (s *Set) search(k [16]byte) (int, bool) {
	i := sort.Search(len(s.addrs), func(i int) bool {
		return cmp16(s.addrs[i], k) >= 0
	})
	return i, i < len(s.addrs) && s.addrs[i] == k
}

func cmp16(a, b [16]byte) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Insert adds addr to the set, reporting whether it was newly inserted.
func (s *Set) Insert(addr netip.Addr) bool {
	k := key16(addr)
	i, ok := s.search(k)
	if ok {
		return false
	}
	s.addrs = append(s.addrs, [16]byte{})
	copy(s.addrs[i+1:], s.addrs[i:])
	s.addrs[i] = k
	return true
}

// Contains reports whether addr is a member.
func (s *Set) Contains(addr netip.Addr) bool {
	_, ok := s.search(key16(addr))
	return ok
}

// Len returns the number of distinct members.
func (s *Set) Len() int { return len(s.addrs) }

// Iterate calls fn for every member in ascending order, stopping early
// if fn returns false. Members that were inserted as IPv4 addresses are
// reported back in their original (unmapped) form.
func (s *Set) Iterate(fn func(addr netip.Addr) bool) {
	for _, k := range s.addrs {
		addr := netip.AddrFrom16(k)
		if addr.Is4In6() {
			addr = addr.Unmap()
		}
		if !fn(addr) {
			return
		}
	}
}

// WriteTo serializes s using the same file-header shape §6.3 defines for
// every other record format, under the IPset record-format id.
func (s *Set) WriteTo(w io.Writer, compression ipfixcodec.CompressionMethod) error {
	h := &ipfixcodec.FileHeader{
		ByteOrder:   binary.BigEndian,
		Format:      ipfixcodec.FormatIPset,
		Version:     1,
		Compression: compression,
	}
	if err := ipfixcodec.WriteFileHeader(w, h); err != nil {
		return err
	}
	body, err := ipfixcodec.WrapCompressionWriter(w, compression)
	if err != nil {
		return err
	}
	for _, k := range s.addrs {
		if _, err := body.Write(k[:]); err != nil {
			return rwrec.NewError(rwrec.KindWrite, "writing ipset member", err)
		}
	}
	return body.Close()
}

// ReadFrom parses a Set previously written by WriteTo.
func ReadFrom(r io.Reader) (*Set, error) {
	h, err := ipfixcodec.ReadFileHeader(r)
	if err != nil {
		return nil, err
	}
	if h.Format != ipfixcodec.FormatIPset {
		return nil, rwrec.NewError(rwrec.KindHeader, "stream is not an IPset file", nil)
	}
	body, err := ipfixcodec.WrapCompressionReader(r, h.Compression)
	if err != nil {
		return nil, err
	}
	s := New()
	buf := make([]byte, 16)
	for {
		if _, err := io.ReadFull(body, buf); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, rwrec.NewError(rwrec.KindRead, "reading ipset member", err)
		}
		var k [16]byte
		copy(k[:], buf)
		s.addrs = append(s.addrs, k)
	}
	return s, nil
}
