package resource

import (
	"fmt"

	"github.com/bodgit/rescomp/pack"
)

// Output sections
const (
	SectionData   = ".rodata"
	SectionBin    = ".rodata_bin"
	SectionBinFar = ".rodata_binf"
)

type list struct {
	entries []*Entry
	seen    map[*Entry]bool
}

func newList() *list {
	return &list{seen: make(map[*Entry]bool)}
}

func (l *list) add(e *Entry) {
	if e == nil || l.seen[e] {
		return
	}
	l.seen[e] = true
	l.entries = append(l.entries, e)
}

func (l *list) has(e *Entry) bool {
	return l.seen[e]
}

// ownedBins returns the bins owned by resources of kind k that are in the
// far or near section
func (r *Registry) ownedBins(l *list, k Kind, far bool) {
	for _, e := range r.ofKind(k) {
		for _, b := range e.Resource.bins() {
			if bin := binOf(b); bin != nil && bin.Far == far {
				l.add(b)
			}
		}
	}
}

func (r *Registry) groupedBins(far bool, exclude *list) *list {
	l := newList()
	for _, k := range []Kind{KindTilemap, KindTileset, KindBitmap, KindMap} {
		r.ownedBins(l, k, far)
	}
	if exclude == nil {
		return l
	}
	out := newList()
	for _, e := range l.entries {
		if !exclude.has(e) {
			out.add(e)
		}
	}
	return out
}

func (r *Registry) rawBins(far bool, exclude ...*list) *list {
	l := newList()
next:
	for _, e := range r.ofKind(KindBin) {
		if e.Resource.(*Bin).Far != far {
			continue
		}
		for _, x := range exclude {
			if x.has(e) {
				continue next
			}
		}
		l.add(e)
	}
	return l
}

func exportAll(w *Writer, entries []*Entry) error {
	for _, e := range entries {
		if err := e.Resource.export(w, e); err != nil {
			return fmt.Errorf("%s '%s': %w", e.Kind(), e.ID, err)
		}
	}
	return nil
}

// Export writes every resource to w. Hardware sprites and collisions come
// first, then the bins: palettes, raw near bins and the near bins grouped
// by the kind of resource owning them, then the same for far bins in their
// own section unless a NEAR resource is present. The rest of the resources
// follow in the order they were added. An UNGROUP resource disables the
// grouping and an ALIGN resource aligns the far bins.
func (r *Registry) Export(w *Writer) error {
	var (
		align *Entry
		group = true
		near  bool
	)
	for _, e := range r.entries {
		switch e.Kind() {
		case KindAlign:
			align = e
		case KindUngroup:
			group = false
		case KindNear:
			near = true
		}
	}

	palettes := newList()
	r.ownedBins(palettes, KindPalette, false)

	groupedNear, groupedFar := newList(), newList()
	if group {
		groupedNear = r.groupedBins(false, palettes)
		groupedFar = r.groupedBins(true, nil)
	}

	rawNear := r.rawBins(false, palettes, groupedNear)
	rawFar := r.rawBins(true, groupedFar)

	var rest []*Entry
	for _, e := range r.entries {
		switch e.Kind() {
		case KindBin, KindVDPSprite, KindCollision, KindAlign, KindNear, KindUngroup:
		default:
			rest = append(rest, e)
		}
	}

	w.section(SectionData)
	if err := exportAll(w, r.ofKind(KindVDPSprite)); err != nil {
		return err
	}
	if err := exportAll(w, r.ofKind(KindCollision)); err != nil {
		return err
	}

	w.section(SectionBin)
	for _, l := range []*list{palettes, rawNear, groupedNear} {
		if err := exportAll(w, l.entries); err != nil {
			return err
		}
	}

	if !near {
		w.section(SectionBinFar)
	}
	if align != nil {
		if err := exportAll(w, []*Entry{align}); err != nil {
			return err
		}
	}
	for _, l := range []*list{rawFar, groupedFar} {
		if err := exportAll(w, l.entries); err != nil {
			return err
		}
	}

	w.section(SectionData)
	return exportAll(w, rest)
}

// Summary is the breakdown of the output size
type Summary struct {
	// Unpacked is the size of bins stored as is
	Unpacked int
	// Packed is the size of compressed bins
	Packed int
	// Origin is the size of compressed bins before compression
	Origin int
	// Sprites is the size of sprite metadata, not counting tiles and
	// palettes
	Sprites int
	// Misc is the size of any other metadata
	Misc int
}

// Binary returns the size of all bins
func (s Summary) Binary() int {
	return s.Unpacked + s.Packed
}

// Total returns the size of everything
func (s Summary) Total() int {
	return s.Unpacked + s.Packed + s.Sprites + s.Misc
}

func even(n int) int {
	return n + n&1
}

// Summary returns the size of the exported resources
func (r *Registry) Summary() Summary {
	var s Summary
	for _, e := range r.entries {
		switch e.Kind() {
		case KindBin:
			b := e.Resource.(*Bin)
			if b.Scheme() != pack.None {
				s.Origin += even(len(b.Data))
				s.Packed += even(len(b.Packed.Data))
			} else {
				s.Unpacked += even(len(b.Data))
			}
		case KindSprite, KindSpriteAnimation, KindSpriteFrame, KindVDPSprite, KindCollision:
			s.Sprites += e.Size()
		default:
			s.Misc += e.Size()
		}
	}
	return s
}
