// Package jsonloader is the minimal JSON-based reference Loader (§6.2):
// parses a small scene description (film size, technique name, camera,
// triangle list) and builds a scenedb.SceneDatabase plus a loader.Result
// out of it. Scene parsing proper (BSDFs, lights, full camera models,
// glTF) is out of scope per spec.md §1; this package exists purely to
// give the Scenario A/B/C tests and cmd/ignisctl a concrete scene source,
// as SPEC_FULL.md's loader section calls for.
package jsonloader

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/ignis-render/ignis/loader"
	"github.com/ignis-render/ignis/params"
	"github.com/ignis-render/ignis/scenedb"
	"github.com/ignis-render/ignis/scenedb/build"
	"github.com/ignis-render/ignis/variant"
)

// Camera is the reference loader's one supported camera model: a
// perspective pinhole.
type Camera struct {
	Eye  [3]float32 `json:"eye"`
	Dir  [3]float32 `json:"dir"`
	VFov float32    `json:"vfov"`
}

// Triangle is one emissive triangle primitive.
type Triangle struct {
	V0       [3]float32 `json:"v0"`
	V1       [3]float32 `json:"v1"`
	V2       [3]float32 `json:"v2"`
	Material int        `json:"material"`
	Radiance [3]float32 `json:"radiance"`
}

// Scene is the reference loader's whole-file schema.
type Scene struct {
	Film struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"film"`
	Technique string     `json:"technique"`
	Camera    Camera     `json:"camera"`
	SPI       int        `json:"spi"`
	Triangles []Triangle `json:"triangles"`
}

// Loader implements loader.Loader against the Scene JSON schema. It keeps
// the last-parsed Scene available via Last so callers (tests, ignisctl)
// can wire RegisterReferenceShaders after constructing a Device, since the
// actual shader function pointers are a compile-time concern the Loader
// interface itself doesn't carry (§4.2 "Compile" happens in the Runtime,
// not the Loader).
type Loader struct {
	Last Scene
}

// New returns a ready-to-use Loader.
func New() *Loader { return &Loader{} }

// Load reads and parses path, builds a SceneDatabase (a BVH over the
// triangle list via scenedb/build, an "entities" fixtable sized to the
// distinct material count, and a "triangles" dyntable carrying the raw
// per-triangle bytes), and a loader.Result naming one or two technique
// variants depending on Technique ("ao" → one hit-mask variant; "aov_lock"
// → a locked Normals-writing variant followed by the hit-mask variant).
func (l *Loader) Load(path string) (*scenedb.SceneDatabase, loader.Result, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, loader.Result{}, fmt.Errorf("jsonloader: read %q: %w", path, err)
	}
	var scene Scene
	if err := json.Unmarshal(raw, &scene); err != nil {
		return nil, loader.Result{}, fmt.Errorf("jsonloader: parse %q: %w", path, err)
	}
	l.Last = scene

	db := scenedb.New()

	materials := map[int]bool{}
	items := make([]build.AABBItem, len(scene.Triangles))
	dataBuf := make([]byte, 0, len(scene.Triangles)*40)
	lookups := make([]scenedb.LookupEntry, len(scene.Triangles))

	for i, tri := range scene.Triangles {
		materials[tri.Material] = true
		min, max := triangleBounds(tri)
		centroid := mgl32.Vec3{
			(min.X() + max.X()) / 2,
			(min.Y() + max.Y()) / 2,
			(min.Z() + max.Z()) / 2,
		}
		items[i] = build.AABBItem{Min: min, Max: max, Centroid: centroid, Index: i}

		offset := uint64(len(dataBuf))
		dataBuf = appendVec3(dataBuf, tri.V0)
		dataBuf = appendVec3(dataBuf, tri.V1)
		dataBuf = appendVec3(dataBuf, tri.V2)
		dataBuf = appendVec3(dataBuf, tri.Radiance)
		lookups[i] = scenedb.LookupEntry{TypeID: 0, Flags: uint32(tri.Material), Offset: offset}
	}

	builder := &build.Builder{}
	db.BVHs["triangle"] = builder.Build(items)
	db.DynTables["triangles"] = &scenedb.DynTable{Lookups: lookups, Data: dataBuf}
	db.FixTables["entities"] = &scenedb.FixTable{EntryCount: len(materials)}
	db.MaterialCount = len(materials)

	if len(scene.Triangles) > 0 {
		min, max := triangleBounds(scene.Triangles[0])
		for _, tri := range scene.Triangles[1:] {
			tmin, tmax := triangleBounds(tri)
			min = componentMin(min, tmin)
			max = componentMax(max, tmax)
		}
		db.SceneBBoxMin, db.SceneBBoxMax = min, max
		db.SceneRadius = max.Sub(min).Len() / 2
	}

	entityMaterial := make([]int32, len(scene.Triangles))
	for i, tri := range scene.Triangles {
		entityMaterial[i] = int32(tri.Material)
	}

	spi := scene.SPI
	var variants []loader.VariantSource
	switch scene.Technique {
	case "aov_lock":
		variants = []loader.VariantSource{
			{
				DeviceShader: loader.SlotSource{Source: "ref_normals", Entry: "ref_normals", Local: params.New()},
				Info:         variant.TechniqueVariantInfo{LockFramebuffer: true, SPIOverride: spi},
			},
			{
				DeviceShader: loader.SlotSource{Source: "ref_hitmask", Entry: "ref_hitmask", Local: params.New()},
				Info:         variant.TechniqueVariantInfo{SPIOverride: spi},
			},
		}
	default:
		variants = []loader.VariantSource{
			{
				DeviceShader: loader.SlotSource{Source: "ref_hitmask", Entry: "ref_hitmask", Local: params.New()},
				Info:         variant.TechniqueVariantInfo{SPIOverride: spi},
			},
		}
	}

	_, _, up := cameraBasis(scene.Camera.Dir)

	result := loader.Result{
		EnabledAOVs:    []string{"Color", "Normals"},
		Variants:       variants,
		ResourceMap:    nil,
		EntityMaterial: entityMaterial,
		MaterialCount:  len(materials),
		FilmWidth:      scene.Film.Width,
		FilmHeight:     scene.Film.Height,
		TechniqueName:  scene.Technique,
		CameraName:     "perspective",
		CameraOrientation: loader.CameraOrientation{
			Eye: scene.Camera.Eye,
			Dir: scene.Camera.Dir,
			Up:  [3]float32{up.X(), up.Y(), up.Z()},
		},
	}
	return db, result, nil
}

func triangleBounds(t Triangle) (min, max mgl32.Vec3) {
	v0, v1, v2 := mgl32.Vec3(t.V0), mgl32.Vec3(t.V1), mgl32.Vec3(t.V2)
	min = componentMin(componentMin(v0, v1), v2)
	max = componentMax(componentMax(v0, v1), v2)
	return
}

func componentMin(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{minF(a.X(), b.X()), minF(a.Y(), b.Y()), minF(a.Z(), b.Z())}
}

func componentMax(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{maxF(a.X(), b.X()), maxF(a.Y(), b.Y()), maxF(a.Z(), b.Z())}
}

func minF(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func appendVec3(buf []byte, v [3]float32) []byte {
	var tmp [12]byte
	binary.LittleEndian.PutUint32(tmp[0:4], math.Float32bits(v[0]))
	binary.LittleEndian.PutUint32(tmp[4:8], math.Float32bits(v[1]))
	binary.LittleEndian.PutUint32(tmp[8:12], math.Float32bits(v[2]))
	return append(buf, tmp[:]...)
}
