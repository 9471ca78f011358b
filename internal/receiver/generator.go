package receiver

import (
	"os"
	"path/filepath"

	"github.com/birsync/rsync/internal/flist"
	"github.com/birsync/rsync/internal/signature"
)

// GenerateFiles drives the generator role of a pull transfer: for every
// regular file in fileList it decides whether a local basis exists, builds
// that basis's signature, and writes NDX + sum_head + signature blocks to
// Conn, per spec.md's data-flow line "sender <- NDX + sum_head + signature
// blocks <- receiver (per file)". RecvFiles, running concurrently in its own
// goroutine (wired together in do.go via errgroup, matching the teacher's
// do.go pattern), reads back the NDX + token stream this unblocks.
//
// There is no teacher generator.go to adapt: the retrieval only included
// receiver.go/do.go/generatoruid.go/generatorsymlink.go, none of which
// contain this loop. Built directly from spec.md's data-flow description,
// following the same (rt *Transfer) method idiom and rsyncwire.Conn usage
// established throughout this package.
func (rt *Transfer) GenerateFiles(fileList []*File) error {
	seenHardlink := make(map[int64]bool)
	for ndx, f := range fileList {
		if f.IsDir() || f.Type == flist.TypeSymlink ||
			f.Type == flist.TypeDevice || f.Type == flist.TypeSpecial {
			// These types carry no block data; the receiver applies them
			// directly from the file-list entry once it sees their NDX
			// (recvFile1's non-regular-file branch), so the generator never
			// requests a signature round trip for them.
			continue
		}
		if rt.Opts.PreserveHardLinks && f.HardlinkID != 0 {
			// Every member after the first in a hard-link group has no body
			// of its own (internal/sender's groupHardlinks marks it
			// TypeHardlinkRef on the sender side after the list is sorted,
			// so the two sides agree on which occurrence is first purely
			// from shared list order). Track group ids in the same order
			// the sender iterates its list so both sides skip the same
			// entries.
			if seenHardlink[f.HardlinkID] {
				continue
			}
			seenHardlink[f.HardlinkID] = true
		}

		sig, err := rt.buildBasisSignature(f)
		if err != nil {
			return err
		}

		if err := rt.Conn.WriteNdx(int32(ndx)); err != nil {
			return err
		}
		if err := sig.Head.WriteTo(rt.Conn); err != nil {
			return err
		}
		for _, blk := range sig.Blocks {
			if err := rt.Conn.WriteInt32(int32(blk.Rolling)); err != nil {
				return err
			}
			if _, err := rt.Conn.Writer.Write(blk.Strong); err != nil {
				return err
			}
		}
	}
	return rt.Conn.WriteNdx(-1)
}

// buildBasisSignature locates the best local basis for f (the destination's
// current copy, falling back to a reference directory via ChooseBasis) and
// returns its signature. A missing or empty basis yields a zero-block
// signature, which tells the sender to transfer the whole file as one
// literal run (spec.md §4.3: "ChecksumCount == 0 degenerates to a whole-file
// literal transfer").
func (rt *Transfer) buildBasisSignature(f *File) (*signature.Signature, error) {
	basisPath, err := rt.basisPath(f)
	if err != nil {
		return nil, err
	}
	if basisPath == "" {
		return &signature.Signature{Head: signature.SumHead{BlockLength: signature.BlockMin}}, nil
	}

	bf, err := os.Open(basisPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &signature.Signature{Head: signature.SumHead{BlockLength: signature.BlockMin}}, nil
		}
		return nil, err
	}
	defer bf.Close()

	st, err := bf.Stat()
	if err != nil {
		return nil, err
	}
	return signature.Generate(bf, st.Size(), rt.Seed, rt.Opts.ChecksumAlgo, rt.SeedFix)
}

// basisPath resolves the local file used as the delta basis for f: the
// destination's existing copy, or a reference-directory candidate chosen by
// ChooseBasis. An empty result (with a nil error) means no basis is
// available and the whole file must be transferred.
func (rt *Transfer) basisPath(f *File) (string, error) {
	local := filepath.Join(rt.Dest, f.Name)
	if st, err := os.Stat(local); err == nil && !st.IsDir() {
		return local, nil
	}

	decision := ChooseBasis(f.Name, f, rt.Opts, func(candidatePath string, f *File) bool {
		st, err := os.Stat(candidatePath)
		if err != nil {
			return false
		}
		return st.Size() == f.Size && st.ModTime().Unix() == f.Mtime
	})
	switch decision.Kind {
	case BasisNone:
		return "", nil
	default:
		return decision.Path, nil
	}
}
