// Package stats implements the statistics/telemetry subsystem (§4.8,
// §6.4): per-shader-kind and per-section timing/counts, accumulated in a
// thread-local Statistics object and merged into one aggregate by
// get_statistics(). Grounded on the teacher's app.Profiler
// (BeginScope/EndScope/SetCount/GetStatsString) generalised from named
// string scopes to the core's ShaderKey/SectionType taxonomy.
package stats

import (
	"fmt"
	"sort"
	"time"

	"golang.org/x/text/message"

	"github.com/google/uuid"
)

// ShaderKind enumerates the dispatchable shader roles the statistics dump
// reports by (§6.4).
type ShaderKind int

const (
	KindDevice ShaderKind = iota
	KindPrimaryTraversal
	KindSecondaryTraversal
	KindRayGeneration
	KindMiss
	KindHit
	KindAdvancedShadow
	KindCallback
	KindImageInfo
	KindTonemap
	KindBake
)

func (k ShaderKind) String() string {
	switch k {
	case KindDevice:
		return "Device"
	case KindPrimaryTraversal:
		return "PrimaryTraversal"
	case KindSecondaryTraversal:
		return "SecondaryTraversal"
	case KindRayGeneration:
		return "RayGeneration"
	case KindMiss:
		return "Miss"
	case KindHit:
		return "Hit"
	case KindAdvancedShadow:
		return "AdvancedShadow"
	case KindCallback:
		return "Callback"
	case KindImageInfo:
		return "ImageInfo"
	case KindTonemap:
		return "Tonemap"
	case KindBake:
		return "Bake"
	default:
		return "Unknown"
	}
}

// ShaderKey identifies one dispatch point: the owning variant, its kind,
// and a sub-id (material id for Hit/AdvancedShadow, 0 otherwise),
// matching §4.1's "current_shader_key = (variant_id, kind, sub_id)".
type ShaderKey struct {
	VariantID uuid.UUID
	Kind      ShaderKind
	SubID     int
}

func (k ShaderKey) String() string {
	if k.Kind == KindHit || k.Kind == KindAdvancedShadow {
		return fmt.Sprintf("%s[%d]", k.Kind, k.SubID)
	}
	return k.Kind.String()
}

// SectionType enumerates the declared "sections" bracketed by
// stats.begin_.../stats.end_... outside of shader dispatch proper (§6.4).
type SectionType int

const (
	SectionImageLoading SectionType = iota
	SectionPackedImageLoading
	SectionBufferLoading
	SectionBufferRequests
	SectionBufferReleases
	SectionFramebufferUpdate
	SectionAOVUpdate
	SectionTonemapUpdate
	SectionFramebufferHostUpdate
	SectionAOVHostUpdate
)

func (s SectionType) String() string {
	switch s {
	case SectionImageLoading:
		return "ImageLoading"
	case SectionPackedImageLoading:
		return "PackedImageLoading"
	case SectionBufferLoading:
		return "BufferLoading"
	case SectionBufferRequests:
		return "BufferRequests"
	case SectionBufferReleases:
		return "BufferReleases"
	case SectionFramebufferUpdate:
		return "FramebufferUpdate"
	case SectionAOVUpdate:
		return "AOVUpdate"
	case SectionTonemapUpdate:
		return "TonemapUpdate"
	case SectionFramebufferHostUpdate:
		return "FramebufferHostUpdate"
	case SectionAOVHostUpdate:
		return "AOVHostUpdate"
	default:
		return "Unknown"
	}
}

// Quantity enumerates the integer counters §6.4 names.
type Quantity int

const (
	QuantityCameraRays Quantity = iota
	QuantityShadowRays
	QuantityBounceRays
)

func (q Quantity) String() string {
	switch q {
	case QuantityCameraRays:
		return "CameraRays"
	case QuantityShadowRays:
		return "ShadowRays"
	case QuantityBounceRays:
		return "BounceRays"
	default:
		return "Unknown"
	}
}

type workload struct {
	count    int64
	duration time.Duration
}

// Statistics accumulates durations/counts by ShaderKey or SectionType and
// integer quantities, one instance per thread (CPU) or one global instance
// (GPU, single logical stream). get_statistics() merges every thread's
// instance into an aggregate via Merge.
type Statistics struct {
	shaders   map[ShaderKey]*workload
	sections  map[SectionType]*workload
	quantities map[Quantity]int64

	shaderStart  map[ShaderKey]time.Time
	sectionStart map[SectionType]time.Time
}

// New returns an empty Statistics ready to accumulate.
func New() *Statistics {
	return &Statistics{
		shaders:      map[ShaderKey]*workload{},
		sections:     map[SectionType]*workload{},
		quantities:   map[Quantity]int64{},
		shaderStart:  map[ShaderKey]time.Time{},
		sectionStart: map[SectionType]time.Time{},
	}
}

// BeginShader records a dispatch start event for key.
func (s *Statistics) BeginShader(key ShaderKey) { s.shaderStart[key] = time.Now() }

// EndShader records a dispatch stop event, adding the elapsed duration and
// incrementing key's dispatch count.
func (s *Statistics) EndShader(key ShaderKey) {
	start, ok := s.shaderStart[key]
	if !ok {
		return
	}
	w := s.shaders[key]
	if w == nil {
		w = &workload{}
		s.shaders[key] = w
	}
	w.duration += time.Since(start)
	w.count++
}

// BeginSection records a section start event.
func (s *Statistics) BeginSection(t SectionType) { s.sectionStart[t] = time.Now() }

// EndSection records a section stop event.
func (s *Statistics) EndSection(t SectionType) {
	start, ok := s.sectionStart[t]
	if !ok {
		return
	}
	w := s.sections[t]
	if w == nil {
		w = &workload{}
		s.sections[t] = w
	}
	w.duration += time.Since(start)
	w.count++
}

// Add increments quantity by value.
func (s *Statistics) Add(q Quantity, value int64) { s.quantities[q] += value }

// ShaderCount returns the dispatch count recorded for key.
func (s *Statistics) ShaderCount(key ShaderKey) int64 {
	if w := s.shaders[key]; w != nil {
		return w.count
	}
	return 0
}

// ShaderDuration returns the accumulated duration recorded for key.
func (s *Statistics) ShaderDuration(key ShaderKey) time.Duration {
	if w := s.shaders[key]; w != nil {
		return w.duration
	}
	return 0
}

// Quantity returns the accumulated value of q.
func (s *Statistics) Quantity(q Quantity) int64 { return s.quantities[q] }

// PrimaryRays is CameraRays + BounceRays (§6.4 "PrimaryRays=Camera+Bounce").
func (s *Statistics) PrimaryRays() int64 {
	return s.Quantity(QuantityCameraRays) + s.Quantity(QuantityBounceRays)
}

// TotalRays is PrimaryRays + ShadowRays.
func (s *Statistics) TotalRays() int64 {
	return s.PrimaryRays() + s.Quantity(QuantityShadowRays)
}

// Merge folds other's accumulated workloads and quantities into s,
// used by get_statistics() to combine every thread-local instance.
func (s *Statistics) Merge(other *Statistics) {
	if other == nil {
		return
	}
	for k, w := range other.shaders {
		dst := s.shaders[k]
		if dst == nil {
			dst = &workload{}
			s.shaders[k] = dst
		}
		dst.count += w.count
		dst.duration += w.duration
	}
	for k, w := range other.sections {
		dst := s.sections[k]
		if dst == nil {
			dst = &workload{}
			s.sections[k] = dst
		}
		dst.count += w.count
		dst.duration += w.duration
	}
	for q, v := range other.quantities {
		s.quantities[q] += v
	}
}

// Dump renders the human-readable multiline report §6.4 describes: shader
// time by kind, section times, and quantities, in that order.
func (s *Statistics) Dump() string {
	p := message.NewPrinter(message.MatchLanguage("en"))
	var out string

	keys := make([]ShaderKey, 0, len(s.shaders))
	for k := range s.shaders {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	out += "Shaders:\n"
	for _, k := range keys {
		w := s.shaders[k]
		out += p.Sprintf("  %-24s count=%-8d time=%s\n", k.String(), w.count, w.duration)
	}

	secKeys := make([]SectionType, 0, len(s.sections))
	for k := range s.sections {
		secKeys = append(secKeys, k)
	}
	sort.Slice(secKeys, func(i, j int) bool { return secKeys[i].String() < secKeys[j].String() })
	out += "Sections:\n"
	for _, k := range secKeys {
		w := s.sections[k]
		out += p.Sprintf("  %-24s count=%-8d time=%s\n", k.String(), w.count, w.duration)
	}

	out += "Quantities:\n"
	out += p.Sprintf("  %-24s %d\n", QuantityCameraRays, s.Quantity(QuantityCameraRays))
	out += p.Sprintf("  %-24s %d\n", QuantityShadowRays, s.Quantity(QuantityShadowRays))
	out += p.Sprintf("  %-24s %d\n", QuantityBounceRays, s.Quantity(QuantityBounceRays))
	out += p.Sprintf("  %-24s %d\n", "PrimaryRays", s.PrimaryRays())
	out += p.Sprintf("  %-24s %d\n", "TotalRays", s.TotalRays())
	return out
}
