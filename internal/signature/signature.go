package signature

import (
	"encoding/binary"
	"io"

	"github.com/birsync/rsync/internal/rsyncchecksum"
)

// BlockSig describes one basis block: its rolling checksum and a truncated
// strong-digest prefix. Offset and length are implicit from the block's
// index and the owning Signature's SumHead (spec.md §3).
type BlockSig struct {
	Rolling uint32
	Strong  []byte // StrongLength bytes
}

// Signature is the full set of block descriptors covering one basis file.
type Signature struct {
	Head   SumHead
	Blocks []BlockSig
}

// Generate reads basis (from the current offset to EOF) and produces its
// signature, choosing a block layout from size via ChooseBlockLayout. A
// size <= 0 yields a signature with no blocks, whatever the reader holds.
// seedFix mixes the seed into each block's rolling checksum
// (CHECKSUM_SEED_FIX, protocol >= 30); the strong digest is always seeded.
//
// Corresponds to rsync/generator.c:generate_and_send_sums and the teacher's
// inline per-block loop in rsyncd/rsyncd.go's send_files path (sum_head
// computation via sumSizesSqroot, followed by per-chunk digesting).
func Generate(r io.Reader, size int64, seed int32, algo string, seedFix bool) (*Signature, error) {
	bl, rem, count, strongLen := ChooseBlockLayout(size)
	head := SumHead{
		ChecksumCount:   count,
		BlockLength:     bl,
		RemainderLength: rem,
		ChecksumLength:  strongLen,
	}
	sig := &Signature{Head: head, Blocks: make([]BlockSig, 0, count)}
	if count == 0 {
		return sig, nil
	}

	buf := make([]byte, bl)
	for i := int32(0); i < count; i++ {
		n := int(head.BlockLengthAt(i))
		chunk := buf[:n]
		if _, err := io.ReadFull(r, chunk); err != nil {
			return nil, err
		}
		rolling := rsyncchecksum.Sum32(chunk, seed, seedFix)
		strong, err := rsyncchecksum.Sum(algo, seed, chunk)
		if err != nil {
			return nil, err
		}
		sig.Blocks = append(sig.Blocks, BlockSig{
			Rolling: rolling,
			Strong:  strong[:strongLen],
		})
	}
	return sig, nil
}

// WriteTo serializes the signature as rsync does: the sum head followed by
// (rolling uint32, strong digest prefix) for each block.
func (s *Signature) WriteTo(w io.Writer) error {
	var hdr [16]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(s.Head.ChecksumCount))
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(s.Head.BlockLength))
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(s.Head.ChecksumLength))
	binary.LittleEndian.PutUint32(hdr[12:16], uint32(s.Head.RemainderLength))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	for _, b := range s.Blocks {
		var rb [4]byte
		binary.LittleEndian.PutUint32(rb[:], b.Rolling)
		if _, err := w.Write(rb[:]); err != nil {
			return err
		}
		if _, err := w.Write(b.Strong); err != nil {
			return err
		}
	}
	return nil
}

// ReadSignature is the inverse of WriteTo.
func ReadSignature(r io.Reader) (*Signature, error) {
	var hdr [16]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	head := SumHead{
		ChecksumCount:   int32(binary.LittleEndian.Uint32(hdr[0:4])),
		BlockLength:     int32(binary.LittleEndian.Uint32(hdr[4:8])),
		ChecksumLength:  int32(binary.LittleEndian.Uint32(hdr[8:12])),
		RemainderLength: int32(binary.LittleEndian.Uint32(hdr[12:16])),
	}
	sig := &Signature{Head: head, Blocks: make([]BlockSig, 0, head.ChecksumCount)}
	for i := int32(0); i < head.ChecksumCount; i++ {
		var rb [4]byte
		if _, err := io.ReadFull(r, rb[:]); err != nil {
			return nil, err
		}
		strong := make([]byte, head.ChecksumLength)
		if _, err := io.ReadFull(r, strong); err != nil {
			return nil, err
		}
		sig.Blocks = append(sig.Blocks, BlockSig{
			Rolling: binary.LittleEndian.Uint32(rb[:]),
			Strong:  strong,
		})
	}
	return sig, nil
}
