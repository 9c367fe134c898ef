// Package format implements the decompressed stage3 stream layout.
//
// A stream starts with a preamble followed by one record per entry:
//
//	"STG3" | version u8 | u32le length | StreamInfo table
//	repeat: u32le length | Header table | content (regular files only)
//
// Tables are FlatBuffers (schema/stage3.fbs). There is no alignment and no
// end marker: a clean end of input at a record boundary ends the stream.
package format

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/opencontainers/go-digest"

	"github.com/meigma/stage3/internal/fb"
	"github.com/meigma/stage3/internal/stagetype"
)

// Magic identifies a decompressed stage3 stream.
const Magic = "STG3"

// Version is the stream layout version written by this package.
const Version uint8 = 1

// MaxHeaderSize bounds a single encoded header or stream info table.
const MaxHeaderSize = 1 << 20

const lengthPrefixSize = 4

// ErrContentChanged is returned when a file's content differs from the
// size or digest recorded in its header while it is being written.
var ErrContentChanged = errors.New("file changed during archive creation")

// StreamInfo is the archive-wide metadata stored after the magic.
type StreamInfo struct {
	// BuildID identifies one build. Empty in deterministic archives.
	BuildID string

	// Created is the build time. Zero in deterministic archives.
	Created time.Time

	// Deterministic records that the archive was built reproducibly.
	Deterministic bool
}

func encodeStreamInfo(info StreamInfo) []byte {
	builder := flatbuffers.NewBuilder(64)

	var idOffset flatbuffers.UOffsetT
	if info.BuildID != "" {
		idOffset = builder.CreateString(info.BuildID)
	}

	fb.StreamInfoStart(builder)
	fb.StreamInfoAddHashAlgorithm(builder, fb.HashAlgorithmSHA256)
	if info.BuildID != "" {
		fb.StreamInfoAddBuildId(builder, idOffset)
	}
	if !info.Created.IsZero() {
		fb.StreamInfoAddCreatedNs(builder, info.Created.UnixNano())
	}
	fb.StreamInfoAddDeterministic(builder, info.Deterministic)
	builder.Finish(fb.StreamInfoEnd(builder))
	return builder.FinishedBytes()
}

func decodeStreamInfo(data []byte) (info StreamInfo, err error) {
	defer func() {
		if r := recover(); r != nil {
			info = StreamInfo{}
			err = fmt.Errorf("%w: failed to parse stream info: %v", stagetype.ErrFormat, r)
		}
	}()
	if len(data) < flatbuffers.SizeUOffsetT {
		return StreamInfo{}, fmt.Errorf("%w: stream info too short", stagetype.ErrFormat)
	}

	root := fb.GetRootAsStreamInfo(data, 0)
	if alg := root.HashAlgorithm(); alg != fb.HashAlgorithmSHA256 {
		return StreamInfo{}, fmt.Errorf("%w: unsupported hash algorithm %s", stagetype.ErrFormat, alg)
	}
	info.BuildID = string(root.BuildId())
	if ns := root.CreatedNs(); ns != 0 {
		info.Created = time.Unix(0, ns).UTC()
	}
	info.Deterministic = root.Deterministic()
	return info, nil
}

// encodeHeader serializes e as a size-prefixed Header table.
func encodeHeader(builder *flatbuffers.Builder, e *stagetype.Entry, sum []byte) []byte {
	builder.Reset()

	pathOffset := builder.CreateString(e.Path)
	var linkOffset, sumOffset flatbuffers.UOffsetT
	if e.LinkTarget != "" {
		linkOffset = builder.CreateString(e.LinkTarget)
	}
	if len(sum) > 0 {
		sumOffset = builder.CreateByteVector(sum)
	}

	fb.HeaderStart(builder)
	fb.HeaderAddPath(builder, pathOffset)
	fb.HeaderAddKind(builder, fb.Kind(e.Kind))
	if e.Special != stagetype.SpecialNone {
		fb.HeaderAddSpecial(builder, fb.Special(e.Special))
	}
	fb.HeaderAddMode(builder, e.Mode)
	fb.HeaderAddUid(builder, e.UID)
	fb.HeaderAddGid(builder, e.GID)
	fb.HeaderAddSize(builder, e.Size)
	if e.LinkTarget != "" {
		fb.HeaderAddLinkTarget(builder, linkOffset)
	}
	if len(sum) > 0 {
		fb.HeaderAddChecksum(builder, sumOffset)
	}
	if !e.ModTime.IsZero() {
		fb.HeaderAddHasMtime(builder, true)
		fb.HeaderAddMtimeSec(builder, e.ModTime.Unix())
		fb.HeaderAddMtimeNsec(builder, uint32(e.ModTime.Nanosecond())) //nolint:gosec // always below 1e9
	}
	fb.HeaderAddDevMajor(builder, e.DevMajor)
	fb.HeaderAddDevMinor(builder, e.DevMinor)
	fb.FinishSizePrefixedHeaderBuffer(builder, fb.HeaderEnd(builder))
	return builder.FinishedBytes()
}

// decodeHeader parses a Header table (without its length prefix). Only the
// shape of the record is checked here; path rules are applied by the Reader.
func decodeHeader(data []byte) (e stagetype.Entry, err error) {
	defer func() {
		if r := recover(); r != nil {
			e = stagetype.Entry{}
			err = fmt.Errorf("%w: failed to parse header: %v", stagetype.ErrFormat, r)
		}
	}()
	if len(data) < flatbuffers.SizeUOffsetT {
		return stagetype.Entry{}, fmt.Errorf("%w: header too short", stagetype.ErrFormat)
	}

	h := fb.GetRootAsHeader(data, 0)
	e = stagetype.Entry{
		Path:       string(h.Path()),
		Kind:       stagetype.Kind(h.Kind()),
		Special:    stagetype.Special(h.Special()),
		Mode:       h.Mode(),
		UID:        h.Uid(),
		GID:        h.Gid(),
		Size:       h.Size(),
		LinkTarget: string(h.LinkTarget()),
		DevMajor:   h.DevMajor(),
		DevMinor:   h.DevMinor(),
	}
	if h.HasMtime() {
		if h.MtimeNsec() >= uint32(time.Second) {
			return stagetype.Entry{}, fmt.Errorf("%w: %s: mtime nanoseconds out of range", stagetype.ErrFormat, e.Path)
		}
		e.ModTime = time.Unix(h.MtimeSec(), int64(h.MtimeNsec())).UTC()
	}
	if sum := h.ChecksumBytes(); len(sum) > 0 {
		if len(sum) != digest.Canonical.Size() {
			return stagetype.Entry{}, fmt.Errorf("%w: %s: checksum has %d bytes, want %d",
				stagetype.ErrFormat, e.Path, len(sum), digest.Canonical.Size())
		}
		e.Checksum = digest.NewDigestFromBytes(digest.Canonical, sum)
	}
	return e, checkShape(&e)
}

// checkShape rejects field combinations that cannot come from a valid entry.
func checkShape(e *stagetype.Entry) error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s: %s", stagetype.ErrFormat, e.Path, fmt.Sprintf(format, args...))
	}
	if e.Path == "" {
		return fmt.Errorf("%w: header without path", stagetype.ErrFormat)
	}
	if !e.Kind.Valid() {
		return fail("unknown kind %d", e.Kind)
	}
	if e.Mode&^stagetype.ModeMask != 0 {
		return fail("mode %#o has bits outside %#o", e.Mode, stagetype.ModeMask)
	}
	if e.Kind == stagetype.KindOther {
		if e.Special > stagetype.SpecialIrregular {
			return fail("unknown special type %d", e.Special)
		}
	} else if e.Special != stagetype.SpecialNone {
		return fail("special type on %s entry", e.Kind)
	}
	if e.Kind != stagetype.KindRegular {
		if e.Size != 0 {
			return fail("%s entry declares %d content bytes", e.Kind, e.Size)
		}
		if e.Checksum != "" {
			return fail("checksum on %s entry", e.Kind)
		}
	} else if e.Checksum == "" {
		return fail("regular file without checksum")
	}
	if (e.Kind == stagetype.KindSymlink) != (e.LinkTarget != "") {
		if e.Kind == stagetype.KindSymlink {
			return fail("symlink without target")
		}
		return fail("link target on %s entry", e.Kind)
	}
	return nil
}

// checksumBytes returns the raw bytes of a canonical digest.
func checksumBytes(d digest.Digest) ([]byte, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if d.Algorithm() != digest.Canonical {
		return nil, fmt.Errorf("unsupported digest algorithm %s", d.Algorithm())
	}
	return hex.DecodeString(d.Encoded())
}

func putLength(b []byte, n int) {
	binary.LittleEndian.PutUint32(b, uint32(n)) //nolint:gosec // callers bound n by MaxHeaderSize
}
