package message

import "strings"

// NormalizeAddress prefixes addr with "/" if it does not start with one.
func NormalizeAddress(addr string) string {
	if strings.HasPrefix(addr, "/") {
		return addr
	}
	return "/" + addr
}

// MatchAddress reports whether addr matches the path pattern.
//
// Segments are compared exactly. Each "@" in pattern matches any single segment. If pattern
// ends with "*", any additional segments in addr are ignored. A pattern without "@" or "*"
// matches only the identical (normalized) address.
func MatchAddress(pattern, addr string) bool {
	ok, _ := Captures(pattern, addr)
	return ok
}

// Captures matches like MatchAddress and also returns the segments matched by each "@", in
// order. "*" does not capture anything.
func Captures(pattern, addr string) (bool, []string) {
	pathSegs := strings.Split(NormalizeAddress(pattern), "/")
	addrSegs := strings.Split(NormalizeAddress(addr), "/")

	endsWithStar := pathSegs[len(pathSegs)-1] == "*"
	matchLen := len(pathSegs)
	if endsWithStar {
		matchLen--
		if len(addrSegs) < matchLen {
			return false, nil
		}
	} else if len(pathSegs) != len(addrSegs) {
		return false, nil
	}

	var captures []string
	for i := 0; i < matchLen; i++ {
		p := pathSegs[i]
		if p == "@" {
			captures = append(captures, addrSegs[i])
		} else if p != addrSegs[i] {
			return false, nil
		}
	}
	return true, captures
}
