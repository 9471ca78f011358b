package sender

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/birsync/rsync/internal/delta"
	"github.com/birsync/rsync/internal/flist"
	"github.com/birsync/rsync/internal/signature"
)

// sendFiles answers the remote generator's basis-signature requests with
// delta token streams, one NDX per file-list entry in list order.
//
// The generator (internal/receiver.Transfer.GenerateFiles) only emits a
// basis-signature request for regular files; non-regular entries (dirs,
// symlinks, devices, specials) are applied by the receiver from file-list
// metadata alone and never round-trip a basis. sendFiles mirrors that
// asymmetry: it reads one signature per regular file from st.Conn, in the
// same order the file list was sent, and for every entry writes exactly
// one NDX to the recvFiles stream the remote is reading concurrently
// (internal/receiver/receiver.go's RecvFiles), with a body only for
// regular files.
//
// Corresponds to rsync/generator.c's send_files, adapted to this
// implementation's single-pass (non-incremental) file-list exchange.
func (st *Transfer) sendFiles(root string, files []*flist.File) error {
	for ndx, f := range files {
		if f.Type != flist.TypeRegular {
			if err := st.Conn.WriteNdx(int32(ndx)); err != nil {
				return err
			}
			continue
		}

		genNdx, err := st.Conn.ReadNdx()
		if err != nil {
			return fmt.Errorf("reading generator ndx for %q: %w", f.Name, err)
		}
		if genNdx != int32(ndx) {
			return fmt.Errorf("protocol error: generator ndx %d, expected %d (%q)", genNdx, ndx, f.Name)
		}

		var sh signature.SumHead
		if err := sh.ReadFrom(st.Conn); err != nil {
			return err
		}
		blocks := make([]signature.BlockSig, sh.ChecksumCount)
		for i := range blocks {
			rolling, err := st.Conn.ReadInt32()
			if err != nil {
				return err
			}
			strong, err := st.Conn.ReadN(int(sh.ChecksumLength))
			if err != nil {
				return err
			}
			blocks[i] = signature.BlockSig{Rolling: uint32(rolling), Strong: strong}
		}
		sig := &signature.Signature{Head: sh, Blocks: blocks}
		idx := signature.BuildIndex(sig)

		if err := st.Conn.WriteNdx(int32(ndx)); err != nil {
			return err
		}
		if err := sh.WriteTo(st.Conn); err != nil {
			return err
		}

		if err := st.sendOneFile(root, f, idx); err != nil {
			return err
		}
	}

	// Terminate both the phase and the session on the recvFiles stream
	// (internal/receiver/receiver.go reads two consecutive -1 NDX values:
	// the first ends the current phase, the second ends the transfer).
	// The file list is transmitted in one pass rather than expanded
	// directory-by-directory, so there is never a redo phase requesting
	// more work.
	if err := st.Conn.WriteNdx(-1); err != nil {
		return err
	}
	return st.Conn.WriteNdx(-1)
}

func (st *Transfer) sendOneFile(root string, f *flist.File, idx *signature.Index) error {
	abs := f.Name
	if root != "" {
		abs = filepath.Join(root, f.Name)
	}
	in, err := os.Open(abs)
	if err != nil {
		return err
	}
	defer in.Close()

	tw := &delta.TokenWriter{W: st.BW.Writer(st.Conn.Writer)}
	return delta.Match(in, idx, st.Seed, st.algo(), tw, st.SeedFix)
}
