// Copyright (C) 2026 The opcdaserver authors.
// All rights reserved. This file is part of opcdaserver.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package addrspace

import "unicode"

// MatchGlob reports whether name matches the case-insensitive shell-style
// pattern, supporting '*' (any run, including empty), '?' (single rune),
// and bracket classes '[abc]', '[!abc]', '[a-z]'. Note the DOS-style '!'
// class negation, which path/filepath.Match does not speak.
func MatchGlob(pattern, name string) bool {
	p := []rune(pattern)
	n := []rune(name)
	return matchHere(p, n)
}

func matchHere(p, n []rune) bool {
	for len(p) > 0 {
		switch p[0] {
		case '*':
			// collapse consecutive stars
			for len(p) > 0 && p[0] == '*' {
				p = p[1:]
			}
			if len(p) == 0 {
				return true
			}
			for i := 0; i <= len(n); i++ {
				if matchHere(p, n[i:]) {
					return true
				}
			}
			return false
		case '?':
			if len(n) == 0 {
				return false
			}
			p = p[1:]
			n = n[1:]
		case '[':
			if len(n) == 0 {
				return false
			}
			end := findClassEnd(p)
			if end < 0 {
				// malformed class: treat '[' literally
				if !equalFold(p[0], n[0]) {
					return false
				}
				p = p[1:]
				n = n[1:]
				continue
			}
			if !matchClass(p[1:end], n[0]) {
				return false
			}
			p = p[end+1:]
			n = n[1:]
		default:
			if len(n) == 0 || !equalFold(p[0], n[0]) {
				return false
			}
			p = p[1:]
			n = n[1:]
		}
	}
	return len(n) == 0
}

func findClassEnd(p []rune) int {
	for i := 1; i < len(p); i++ {
		if p[i] == ']' {
			return i
		}
	}
	return -1
}

func matchClass(class []rune, r rune) bool {
	negate := false
	if len(class) > 0 && class[0] == '!' {
		negate = true
		class = class[1:]
	}
	matched := false
	for i := 0; i < len(class); i++ {
		if i+2 < len(class) && class[i+1] == '-' {
			lo, hi := class[i], class[i+2]
			if runeInRange(r, lo, hi) {
				matched = true
			}
			i += 2
			continue
		}
		if equalFold(class[i], r) {
			matched = true
		}
	}
	return matched != negate
}

func runeInRange(r, lo, hi rune) bool {
	rl, ll, hl := unicode.ToLower(r), unicode.ToLower(lo), unicode.ToLower(hi)
	return rl >= ll && rl <= hl
}

func equalFold(a, b rune) bool {
	return unicode.ToLower(a) == unicode.ToLower(b)
}
