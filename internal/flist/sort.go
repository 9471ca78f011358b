package flist

import "sort"

// SortAndClean orders entries the way upstream rsync's flist_sort_and_clean
// does: lexicographic by name, with duplicate names collapsed to the last
// occurrence (the sender may legitimately enumerate the same path twice
// when multiple source args overlap). Per spec.md §4.4 "Sort and dedup":
// "entries are sorted by name and duplicate names collapsed, keeping the
// last occurrence".
func SortAndClean(files []*File) []*File {
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].Name < files[j].Name
	})

	out := files[:0:0]
	for i := 0; i < len(files); i++ {
		if i+1 < len(files) && files[i+1].Name == files[i].Name {
			continue // a later duplicate wins; skip this one
		}
		out = append(out, files[i])
	}
	return out
}
