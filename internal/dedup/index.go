package dedup

// Index holds the membership of one list for the duration of a single
// reconciliation run. It is not safe for concurrent use.
type Index struct {
	raw    map[string]struct{}
	digits map[string]struct{}
	emails map[string]struct{}
}

func NewIndex(keys ...Key) *Index {
	ix := &Index{
		raw:    make(map[string]struct{}, len(keys)),
		digits: make(map[string]struct{}, len(keys)),
		emails: make(map[string]struct{}, len(keys)),
	}
	for _, k := range keys {
		ix.Add(k)
	}
	return ix
}

// Contains is the set form of Key.Matches against every added key.
func (ix *Index) Contains(k Key) bool {
	if _, ok := ix.raw[k.Raw]; ok && k.Raw != "" {
		return true
	}
	if _, ok := ix.digits[k.Digits]; ok && k.Digits != "" {
		return true
	}
	if _, ok := ix.emails[k.Email]; ok && k.Email != "" {
		return true
	}
	return false
}

func (ix *Index) Add(k Key) {
	if k.Raw != "" {
		ix.raw[k.Raw] = struct{}{}
	}
	if k.Digits != "" {
		ix.digits[k.Digits] = struct{}{}
	}
	if k.Email != "" {
		ix.emails[k.Email] = struct{}{}
	}
}
