package goshare

import "fmt"

// IDMap is one line of a uid_map/gid_map: InsideID is the id as seen inside
// the new user namespace, OutsideID is the id on the host, Count is how
// many consecutive ids the mapping covers.
type IDMap struct {
	InsideID  uint32
	OutsideID uint32
	Count     uint32
}

// line renders the map entry the way /proc/<pid>/{uid,gid}_map expects it:
// "inside outside count\n".
func (m IDMap) line() string {
	return fmt.Sprintf("%d %d %d\n", m.InsideID, m.OutsideID, m.Count)
}

// idMapLines concatenates a full map into the text form a /proc id-map file
// takes. Spawn itself hands the maps to the Go runtime (SysProcAttr) or to
// the helper commands instead of writing this text.
func idMapLines(maps []IDMap) string {
	var out string
	for _, m := range maps {
		out += m.line()
	}
	return out
}

// IDMapCommands names external newuidmap/newgidmap-style helpers used
// instead of writing /proc/<pid>/{uid,gid}_map directly. See
// Command.SetIDMapCommands.
type IDMapCommands struct {
	NewUidMap string
	NewGidMap string
}
