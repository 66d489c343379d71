package gfs

// OpenOption is one flag in the open-option set of §6.
type OpenOption int

const (
	OpenRead OpenOption = iota
	OpenWrite
	OpenCreate
	OpenCreateNew
	OpenAppend
	OpenTruncate
)

// OpenOptions is an open-option set, as passed to NewByteChannel.
type OpenOptions map[OpenOption]struct{}

// NewOpenOptions builds an option set from the given flags.
func NewOpenOptions(opts ...OpenOption) OpenOptions {
	set := make(OpenOptions, len(opts))
	for _, o := range opts {
		set[o] = struct{}{}
	}
	return set
}

// Has reports whether o is a member of the set.
func (s OpenOptions) Has(o OpenOption) bool {
	_, ok := s[o]
	return ok
}
