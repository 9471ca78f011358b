package flist

import (
	"fmt"

	rsync "github.com/birsync/rsync"
	"github.com/birsync/rsync/internal/rsyncwire"
)

// Codec encodes/decodes a stream of File entries against the flag byte
// layout of spec.md §4.4, including common-prefix compression against the
// previous entry and the "same as previous" mode/uid/gid/mtime bits.
//
// Grounded on the teacher's sendFileList (rsyncd/rsyncd.go): status byte,
// name length + bytes, size, mtime, mode, optional uid/gid fields, in that
// order; generalized here to add prefix compression, symlink/device/
// hardlink fields, and varint flags under CompatVarintFListFlags.
type Codec struct {
	VarintFlags bool // CompatVarintFListFlags negotiated
	PreserveUID bool
	PreserveGID bool
	PreserveDevices bool
	PreserveSpecials bool
	PreserveLinks bool
	PreserveHardlinks bool

	prevName string
	prevMode int32
	prevUID  int32
	prevGID  int32
	prevMtime int64
	havePrev bool
}

// WriteEntry encodes one entry to c, computing the common-prefix
// compression and "same as previous" flags against the last entry written
// through this Codec instance.
func (cd *Codec) WriteEntry(c *rsyncwire.Conn, f *File) error {
	prefixLen, suffix := 0, f.Name
	if cd.havePrev {
		prefixLen = commonPrefixLen(cd.prevName, f.Name)
		suffix = f.Name[prefixLen:]
	}

	var flags int32
	if f.IsTopLevel {
		flags |= rsync.FlistTopLevel
	}
	if cd.havePrev && f.Mode == cd.prevMode {
		flags |= rsync.FlistSameMode
	}
	if cd.PreserveUID && cd.havePrev && f.UID == cd.prevUID {
		flags |= rsync.FlistSameUID
	}
	if cd.PreserveGID && cd.havePrev && f.GID == cd.prevGID {
		flags |= rsync.FlistSameGID
	}
	if cd.havePrev && f.Mtime == cd.prevMtime {
		flags |= rsync.FlistSameTime
	}
	if prefixLen > 0 {
		flags |= rsync.FlistNameSame
	}
	if len(suffix) > 255 {
		flags |= rsync.FlistNameLong
	}

	if cd.PreserveHardlinks && f.HardlinkID != 0 {
		flags |= rsync.FlistHlinked
	}

	needExt := f.Type == TypeSymlink || f.Type == TypeDevice || f.IsDir() || flags&rsync.FlistHlinked != 0
	if needExt {
		flags |= rsync.FlistExtendedFlags
	}
	if flags&0xFF == 0 && !needExt {
		// A literal zero status byte means "end of file list"; bump to the
		// extended-flags path so a legitimately all-defaults entry never
		// collides with the terminator, matching upstream's reservation of
		// the all-zero byte.
		flags |= rsync.FlistExtendedFlags
	}

	if err := cd.writeFlags(c, flags); err != nil {
		return err
	}

	if flags&rsync.FlistNameSame != 0 {
		if err := c.WriteByte(byte(prefixLen)); err != nil {
			return err
		}
	}
	if flags&rsync.FlistNameLong != 0 {
		if err := c.WriteInt32(int32(len(suffix))); err != nil {
			return err
		}
	} else {
		if err := c.WriteByte(byte(len(suffix))); err != nil {
			return err
		}
	}
	if err := c.WriteString(suffix); err != nil {
		return err
	}

	if err := c.WriteInt64(f.Size); err != nil {
		return err
	}
	if flags&rsync.FlistSameTime == 0 {
		if err := c.WriteInt32(int32(f.Mtime)); err != nil {
			return err
		}
	}
	if flags&rsync.FlistSameMode == 0 {
		if err := c.WriteInt32(modeWithType(f)); err != nil {
			return err
		}
	}
	if cd.PreserveUID && flags&rsync.FlistSameUID == 0 {
		if err := c.WriteInt32(f.UID); err != nil {
			return err
		}
	}
	if cd.PreserveGID && flags&rsync.FlistSameGID == 0 {
		if err := c.WriteInt32(f.GID); err != nil {
			return err
		}
	}
	if cd.PreserveDevices && (f.Type == TypeDevice || f.Type == TypeSpecial) {
		if err := c.WriteInt32(f.DevMajor); err != nil {
			return err
		}
		if err := c.WriteInt32(f.DevMinor); err != nil {
			return err
		}
	}
	if cd.PreserveLinks && f.Type == TypeSymlink {
		if err := c.WriteInt32(int32(len(f.LinkTarget))); err != nil {
			return err
		}
		if err := c.WriteString(f.LinkTarget); err != nil {
			return err
		}
	}
	if cd.PreserveHardlinks && f.HardlinkID != 0 {
		if err := c.WriteInt64(f.HardlinkID); err != nil {
			return err
		}
	}

	cd.prevName = f.Name
	cd.prevMode = f.Mode
	cd.prevUID = f.UID
	cd.prevGID = f.GID
	cd.prevMtime = f.Mtime
	cd.havePrev = true
	return nil
}

// ReadEntry decodes one entry, or reports done=true when the terminating
// zero flag byte is read.
func (cd *Codec) ReadEntry(c *rsyncwire.Conn) (f *File, done bool, err error) {
	flags, err := cd.readFlags(c)
	if err != nil {
		return nil, false, err
	}
	if flags == 0 {
		return nil, true, nil
	}

	var prefixLen int
	if flags&rsync.FlistNameSame != 0 {
		b, err := c.ReadByte()
		if err != nil {
			return nil, false, err
		}
		prefixLen = int(b)
	}

	var nameLen int
	if flags&rsync.FlistNameLong != 0 {
		n, err := c.ReadInt32()
		if err != nil {
			return nil, false, err
		}
		nameLen = int(n)
	} else {
		b, err := c.ReadByte()
		if err != nil {
			return nil, false, err
		}
		nameLen = int(b)
	}
	suffix, err := c.ReadN(nameLen)
	if err != nil {
		return nil, false, err
	}

	name := string(suffix)
	if prefixLen > 0 {
		if prefixLen > len(cd.prevName) {
			return nil, false, fmt.Errorf("flist: prefix length %d exceeds previous name length %d", prefixLen, len(cd.prevName))
		}
		name = cd.prevName[:prefixLen] + name
	}

	f = &File{Name: name, IsTopLevel: flags&rsync.FlistTopLevel != 0}

	size, err := c.ReadInt64()
	if err != nil {
		return nil, false, err
	}
	f.Size = size

	if flags&rsync.FlistSameTime != 0 {
		f.Mtime = cd.prevMtime
	} else {
		mt, err := c.ReadInt32()
		if err != nil {
			return nil, false, err
		}
		f.Mtime = int64(mt)
	}

	if flags&rsync.FlistSameMode != 0 {
		f.Mode = cd.prevMode
	} else {
		m, err := c.ReadInt32()
		if err != nil {
			return nil, false, err
		}
		f.Mode = m
	}
	f.Type = typeFromMode(f.Mode)

	if cd.PreserveUID {
		if flags&rsync.FlistSameUID != 0 {
			f.UID = cd.prevUID
		} else {
			v, err := c.ReadInt32()
			if err != nil {
				return nil, false, err
			}
			f.UID = v
		}
	}
	if cd.PreserveGID {
		if flags&rsync.FlistSameGID != 0 {
			f.GID = cd.prevGID
		} else {
			v, err := c.ReadInt32()
			if err != nil {
				return nil, false, err
			}
			f.GID = v
		}
	}
	if cd.PreserveDevices && (f.Type == TypeDevice || f.Type == TypeSpecial) {
		major, err := c.ReadInt32()
		if err != nil {
			return nil, false, err
		}
		minor, err := c.ReadInt32()
		if err != nil {
			return nil, false, err
		}
		f.DevMajor, f.DevMinor = major, minor
	}
	if cd.PreserveLinks && f.Type == TypeSymlink {
		n, err := c.ReadInt32()
		if err != nil {
			return nil, false, err
		}
		target, err := c.ReadN(int(n))
		if err != nil {
			return nil, false, err
		}
		f.LinkTarget = string(target)
	}
	if cd.PreserveHardlinks && flags&rsync.FlistHlinked != 0 {
		id, err := c.ReadInt64()
		if err != nil {
			return nil, false, err
		}
		f.HardlinkID = id
	}

	cd.prevName = f.Name
	cd.prevMode = f.Mode
	cd.prevUID = f.UID
	cd.prevGID = f.GID
	cd.prevMtime = f.Mtime
	cd.havePrev = true
	return f, false, nil
}

// WriteEnd writes the terminating zero flag.
func (cd *Codec) WriteEnd(c *rsyncwire.Conn) error {
	return cd.writeFlags(c, 0)
}

func (cd *Codec) writeFlags(c *rsyncwire.Conn, flags int32) error {
	if !cd.VarintFlags {
		if flags > 0xFF && flags&rsync.FlistExtendedFlags == 0 {
			return fmt.Errorf("flist: flags %#x require extended byte but CompatVarintFListFlags not negotiated", flags)
		}
		if err := c.WriteByte(byte(flags)); err != nil {
			return err
		}
		if flags&rsync.FlistExtendedFlags != 0 {
			return c.WriteByte(byte(flags >> 8))
		}
		return nil
	}
	return rsyncwire.WriteVarint(c.Writer, flags, 1)
}

func (cd *Codec) readFlags(c *rsyncwire.Conn) (int32, error) {
	if !cd.VarintFlags {
		b, err := c.ReadByte()
		if err != nil {
			return 0, err
		}
		flags := int32(b)
		if flags == 0 {
			return 0, nil
		}
		if flags&rsync.FlistExtendedFlags != 0 {
			b2, err := c.ReadByte()
			if err != nil {
				return 0, err
			}
			flags |= int32(b2) << 8
		}
		return flags, nil
	}
	return rsyncwire.ReadVarint(c.Reader, 1)
}

func commonPrefixLen(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	// Cap at 255 since the prefix-length field is a single byte.
	if n > 255 {
		n = 255
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

// modeWithType packs the POSIX file-type bits into the mode field the way
// upstream rsync does (S_IFDIR/S_IFREG/S_IFLNK/...), matching the teacher's
// inline handling in sendFileList ("mode |= 0o0040000 // S_IFDIR").
func modeWithType(f *File) int32 {
	mode := f.Mode &^ modeTypeMask
	switch f.Type {
	case TypeDirectory:
		mode |= sIFDIR
	case TypeSymlink:
		mode |= sIFLNK
	case TypeDevice:
		mode |= sIFBLK
	case TypeSpecial:
		mode |= sIFIFO
	default:
		mode |= sIFREG
	}
	return mode
}

func typeFromMode(mode int32) FileType {
	switch mode & modeTypeMask {
	case sIFDIR:
		return TypeDirectory
	case sIFLNK:
		return TypeSymlink
	case sIFBLK, sIFCHR:
		return TypeDevice
	case sIFIFO, sIFSOCK:
		return TypeSpecial
	default:
		return TypeRegular
	}
}

const (
	modeTypeMask = 0o170000
	sIFDIR       = 0o040000
	sIFREG       = 0o100000
	sIFLNK       = 0o120000
	sIFBLK       = 0o060000
	sIFCHR       = 0o020000
	sIFIFO       = 0o010000
	sIFSOCK      = 0o140000
)
