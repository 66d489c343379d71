package core

import "strings"

// IsRoot reports whether path denotes the filesystem root (the empty
// string, per the path contract).
func IsRoot(path string) bool {
	return path == ""
}

// Parent returns the parent path of path, or the root ("") if path is
// already a top-level entry or the root itself.
func Parent(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return ""
	}
	return path[:i]
}

// Name returns the final path segment.
func Name(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return path
	}
	return path[i+1:]
}

// Join joins a directory path and a child name. dir == "" denotes the
// root, so the result is just name.
func Join(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

// Ancestors calls fn for each strict ancestor of path, starting from
// the immediate parent and walking up to the root (""), stopping early
// if fn returns false.
func Ancestors(path string, fn func(ancestor string) bool) {
	for p := Parent(path); ; p = Parent(p) {
		if !fn(p) {
			return
		}
		if p == "" {
			return
		}
	}
}

// IsStrictDescendant reports whether path lies strictly inside prefix
// (prefix itself does not count, and prefix == "" matches everything
// but the root).
func IsStrictDescendant(path, prefix string) bool {
	if prefix == "" {
		return path != ""
	}
	return strings.HasPrefix(path, prefix+"/")
}
