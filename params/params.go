// Package params implements the two-tier parameter registry (§3.3, §4.7):
// a global set owned by the Runtime and mutable between iterations, and a
// per-shader local set filled at compile time and read-only thereafter.
package params

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// Set is a named bag of int/float/Vec3/Vec4("color")/string values,
// addressed by name. On the zero Set every getter returns its default and
// MergeFrom allocates the maps; the Set* methods need the maps New
// allocates.
type Set struct {
	Ints    map[string]int32
	Floats  map[string]float32
	Vectors map[string]mgl32.Vec3
	Colors  map[string]mgl32.Vec4
	Strings map[string]string
}

// New returns an empty, ready-to-use Set.
func New() *Set {
	return &Set{
		Ints:    map[string]int32{},
		Floats:  map[string]float32{},
		Vectors: map[string]mgl32.Vec3{},
		Colors:  map[string]mgl32.Vec4{},
		Strings: map[string]string{},
	}
}

// Empty reports whether every map is empty.
func (s *Set) Empty() bool {
	return len(s.Ints) == 0 && len(s.Floats) == 0 && len(s.Vectors) == 0 &&
		len(s.Colors) == 0 && len(s.Strings) == 0
}

func (s *Set) SetInt(key string, v int32)          { s.Ints[key] = v }
func (s *Set) SetFloat(key string, v float32)      { s.Floats[key] = v }
func (s *Set) SetVec3(key string, v mgl32.Vec3)    { s.Vectors[key] = v }
func (s *Set) SetVec4(key string, v mgl32.Vec4)    { s.Colors[key] = v }
func (s *Set) SetString(key string, v string)      { s.Strings[key] = v }

// GetInt returns the stored value or def if key is missing.
func (s *Set) GetInt(key string, def int32) int32 {
	if v, ok := s.Ints[key]; ok {
		return v
	}
	return def
}

func (s *Set) GetFloat(key string, def float32) float32 {
	if v, ok := s.Floats[key]; ok {
		return v
	}
	return def
}

func (s *Set) GetVec3(key string, def mgl32.Vec3) mgl32.Vec3 {
	if v, ok := s.Vectors[key]; ok {
		return v
	}
	return def
}

func (s *Set) GetVec4(key string, def mgl32.Vec4) mgl32.Vec4 {
	if v, ok := s.Colors[key]; ok {
		return v
	}
	return def
}

func (s *Set) GetString(key string, def string) string {
	if v, ok := s.Strings[key]; ok {
		return v
	}
	return def
}

// MergeFrom merges other into s. If replace is false, existing keys in s
// win (try_emplace semantics); if true, other's values overwrite s's
// (insert_or_assign semantics).
func (s *Set) MergeFrom(other *Set, replace bool) {
	if other == nil {
		return
	}
	mergeInt := func(dst map[string]int32, src map[string]int32) {
		for k, v := range src {
			if replace {
				dst[k] = v
				continue
			}
			if _, exists := dst[k]; !exists {
				dst[k] = v
			}
		}
	}
	mergeFloat := func(dst map[string]float32, src map[string]float32) {
		for k, v := range src {
			if replace {
				dst[k] = v
				continue
			}
			if _, exists := dst[k]; !exists {
				dst[k] = v
			}
		}
	}
	mergeVec3 := func(dst map[string]mgl32.Vec3, src map[string]mgl32.Vec3) {
		for k, v := range src {
			if replace {
				dst[k] = v
				continue
			}
			if _, exists := dst[k]; !exists {
				dst[k] = v
			}
		}
	}
	mergeVec4 := func(dst map[string]mgl32.Vec4, src map[string]mgl32.Vec4) {
		for k, v := range src {
			if replace {
				dst[k] = v
				continue
			}
			if _, exists := dst[k]; !exists {
				dst[k] = v
			}
		}
	}
	mergeStr := func(dst map[string]string, src map[string]string) {
		for k, v := range src {
			if replace {
				dst[k] = v
				continue
			}
			if _, exists := dst[k]; !exists {
				dst[k] = v
			}
		}
	}

	if s.Ints == nil {
		s.Ints = map[string]int32{}
	}
	if s.Floats == nil {
		s.Floats = map[string]float32{}
	}
	if s.Vectors == nil {
		s.Vectors = map[string]mgl32.Vec3{}
	}
	if s.Colors == nil {
		s.Colors = map[string]mgl32.Vec4{}
	}
	if s.Strings == nil {
		s.Strings = map[string]string{}
	}

	mergeInt(s.Ints, other.Ints)
	mergeFloat(s.Floats, other.Floats)
	mergeVec3(s.Vectors, other.Vectors)
	mergeVec4(s.Colors, other.Colors)
	mergeStr(s.Strings, other.Strings)
}

// Dump renders a multi-line debug listing of every parameter, sorted by
// name within each type so the output is deterministic.
func (s *Set) Dump() string {
	var b strings.Builder
	for _, k := range sortedKeys(s.Ints) {
		fmt.Fprintf(&b, "[i32] %s = %d\n", k, s.Ints[k])
	}
	for _, k := range sortedKeys(s.Floats) {
		fmt.Fprintf(&b, "[f32] %s = %g\n", k, s.Floats[k])
	}
	for _, k := range sortedKeys(s.Vectors) {
		v := s.Vectors[k]
		fmt.Fprintf(&b, "[vec3] %s = [%g, %g, %g]\n", k, v.X(), v.Y(), v.Z())
	}
	for _, k := range sortedKeys(s.Colors) {
		v := s.Colors[k]
		fmt.Fprintf(&b, "[color] %s = [%g, %g, %g, %g]\n", k, v.X(), v.Y(), v.Z(), v.W())
	}
	for _, k := range sortedKeys(s.Strings) {
		fmt.Fprintf(&b, "[str] %s = %s\n", k, s.Strings[k])
	}
	return b.String()
}

// sortedKeys returns the keys of any string-keyed map in sorted order, so
// Dump's output is deterministic regardless of map iteration order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
