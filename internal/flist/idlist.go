package flist

import (
	"github.com/birsync/rsync/internal/rsyncwire"
)

// Resolver maps a numeric uid/gid to a name, the way a local passwd/group
// lookup would. It mirrors the teacher's os/user based lookups referenced
// from internal/rsyncos.Env.
type Resolver interface {
	Name(id int32) (string, bool)
}

// IDEntry is one resolved (remote id, local id, name) tuple built by
// translating a received id list against a local Resolver.
type IDEntry struct {
	RemoteID int32
	LocalID  int32
	Name     string // empty if no mapping was found
}

// WriteIDList sends ids (already in the order their File entries referenced
// them) as the wire format from spec.md §4.4 "Id lists": a
// (varint id, u8 name_len, name_bytes) sequence terminated by varint 0, with
// an extra id-0 name appended when id0Names is set.
func WriteIDList(c *rsyncwire.Conn, ids []int32, resolve Resolver, id0Names bool) error {
	for _, id := range ids {
		if id == 0 {
			continue // id 0 is handled by the id0Names trailer, not the main list
		}
		name, _ := resolve.Name(id)
		if err := rsyncwire.WriteVarint(c.Writer, id, 1); err != nil {
			return err
		}
		if err := c.WriteByte(byte(len(name))); err != nil {
			return err
		}
		if err := c.WriteString(name); err != nil {
			return err
		}
	}
	if err := rsyncwire.WriteVarint(c.Writer, 0, 1); err != nil {
		return err
	}
	if id0Names {
		name, _ := resolve.Name(0)
		if err := c.WriteByte(byte(len(name))); err != nil {
			return err
		}
		if err := c.WriteString(name); err != nil {
			return err
		}
	}
	return nil
}

// ReadIDList reads the wire format WriteIDList produces and builds the
// translation map described by spec.md §3 "Id list": looking up each
// transmitted name in a local resolver (reverseResolve), falling back to
// the numeric id when the name is unknown locally.
func ReadIDList(c *rsyncwire.Conn, reverseResolve func(name string) (int32, bool), id0Names bool) ([]IDEntry, error) {
	var entries []IDEntry
	for {
		id, err := rsyncwire.ReadVarint(c.Reader, 1)
		if err != nil {
			return nil, err
		}
		if id == 0 {
			break
		}
		nameLen, err := c.ReadByte()
		if err != nil {
			return nil, err
		}
		nameBytes, err := c.ReadN(int(nameLen))
		if err != nil {
			return nil, err
		}
		name := string(nameBytes)
		local := id
		if reverseResolve != nil {
			if mapped, ok := reverseResolve(name); ok {
				local = mapped
			}
		}
		entries = append(entries, IDEntry{RemoteID: id, LocalID: local, Name: name})
	}
	if id0Names {
		nameLen, err := c.ReadByte()
		if err != nil {
			return nil, err
		}
		nameBytes, err := c.ReadN(int(nameLen))
		if err != nil {
			return nil, err
		}
		name := string(nameBytes)
		local := int32(0)
		if reverseResolve != nil {
			if mapped, ok := reverseResolve(name); ok {
				local = mapped
			}
		}
		entries = append(entries, IDEntry{RemoteID: 0, LocalID: local, Name: name})
	}
	return entries, nil
}

// CollectIDs returns the distinct non-zero uid or gid values referenced by
// files, in first-seen order, for use as the id list WriteIDList expects.
func CollectIDs(files []*File, gid bool) []int32 {
	seen := make(map[int32]bool)
	var ids []int32
	for _, f := range files {
		v := f.UID
		if gid {
			v = f.GID
		}
		if v == 0 || seen[v] {
			continue
		}
		seen[v] = true
		ids = append(ids, v)
	}
	return ids
}
