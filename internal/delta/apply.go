package delta

import (
	"bytes"
	"fmt"
	"io"

	"github.com/birsync/rsync/internal/rsyncchecksum"
	"github.com/birsync/rsync/internal/signature"
)

// Apply streams a token sequence from tr into out, resolving block
// references against basis via a MapFile, and verifies the whole-file
// strong checksum at the terminator. It implements spec.md §4.3 "Delta
// application (receiver side)" verbatim, including the bounds check on
// block indices.
func Apply(tr *TokenReader, head signature.SumHead, basis *MapFile, out io.Writer, seed int32, algo string) error {
	fileHash, err := rsyncchecksum.New(algo, seed)
	if err != nil {
		return err
	}

	for {
		tok, err := tr.Next()
		if err != nil {
			return err
		}
		if tok.Done {
			break
		}
		if tok.Literal != nil {
			if _, err := out.Write(tok.Literal); err != nil {
				return err
			}
			fileHash.Write(tok.Literal)
			continue
		}

		if tok.Block < 0 || tok.Block >= head.ChecksumCount {
			return fmt.Errorf("%w: index=%d count=%d", ErrBlockOutOfRange, tok.Block, head.ChecksumCount)
		}
		if basis == nil {
			return fmt.Errorf("delta: block reference received but no basis file is open")
		}
		length := int(head.BlockLengthAt(tok.Block))
		offset := head.OffsetOf(tok.Block)
		data, err := basis.ReadAt(offset, length)
		if err != nil {
			return err
		}
		if _, err := out.Write(data); err != nil {
			return err
		}
		fileHash.Write(data)
	}

	strongLen := rsyncchecksum.Len(algo)
	remote, err := tr.ReadFileChecksum(strongLen)
	if err != nil {
		return err
	}
	local := fileHash.Sum(nil)
	if !bytes.Equal(local, remote) {
		return fmt.Errorf("delta: whole-file checksum mismatch (local=%x remote=%x)", local, remote)
	}
	return nil
}
