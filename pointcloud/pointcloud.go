// Package pointcloud defines an ordered point cloud tagged with the reference frame its points are
// expressed in.
//
// Unlike a spatial index, the cloud keeps every point in insertion order, duplicates included;
// consumers rely on index i of one cloud corresponding to index i of a cloud derived from it.
package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// MetaData is data about what's stored in the point cloud.
type MetaData struct {
	HasColor bool

	MinX, MaxX float64
	MinY, MaxY float64
	MinZ, MaxZ float64
}

// NewMetaData returns an empty MetaData whose bounds will widen on the first merge.
func NewMetaData() MetaData {
	return MetaData{
		MinX: math.MaxFloat64,
		MinY: math.MaxFloat64,
		MinZ: math.MaxFloat64,
		MaxX: -math.MaxFloat64,
		MaxY: -math.MaxFloat64,
		MaxZ: -math.MaxFloat64,
	}
}

// Merge updates the meta data with a new point.
func (meta *MetaData) Merge(v r3.Vector, data Data) {
	if data != nil && data.HasColor() {
		meta.HasColor = true
	}
	meta.MinX = math.Min(meta.MinX, v.X)
	meta.MinY = math.Min(meta.MinY, v.Y)
	meta.MinZ = math.Min(meta.MinZ, v.Z)
	meta.MaxX = math.Max(meta.MaxX, v.X)
	meta.MaxY = math.Max(meta.MaxY, v.Y)
	meta.MaxZ = math.Max(meta.MaxZ, v.Z)
}

// PointCloud is an ordered sequence of points, each with optional data, expressed in FrameID.
type PointCloud struct {
	FrameID string

	points []r3.Vector
	data   []Data
	meta   MetaData
}

// New returns an empty cloud in the given frame.
func New(frameID string) *PointCloud {
	return NewWithPrealloc(frameID, 0)
}

// NewWithPrealloc returns an empty cloud with capacity for size points.
func NewWithPrealloc(frameID string, size int) *PointCloud {
	return &PointCloud{
		FrameID: frameID,
		points:  make([]r3.Vector, 0, size),
		data:    make([]Data, 0, size),
		meta:    NewMetaData(),
	}
}

// NewFromSlices builds a cloud that takes ownership of the given, equally sized slices.
func NewFromSlices(frameID string, points []r3.Vector, data []Data) (*PointCloud, error) {
	if data == nil {
		data = make([]Data, len(points))
	}
	if len(points) != len(data) {
		return nil, errors.Errorf("have %d points but %d data entries", len(points), len(data))
	}
	pc := &PointCloud{FrameID: frameID, points: points, data: data, meta: NewMetaData()}
	for i, p := range points {
		pc.meta.Merge(p, data[i])
	}
	return pc, nil
}

// Size returns the number of points in the cloud.
func (pc *PointCloud) Size() int {
	return len(pc.points)
}

// MetaData returns meta data.
func (pc *PointCloud) MetaData() MetaData {
	return pc.meta
}

// Append adds a point to the end of the cloud. d may be nil.
func (pc *PointCloud) Append(p r3.Vector, d Data) {
	pc.points = append(pc.points, p)
	pc.data = append(pc.data, d)
	pc.meta.Merge(p, d)
}

// At returns the i-th point and its data.
func (pc *PointCloud) At(i int) (r3.Vector, Data) {
	return pc.points[i], pc.data[i]
}

// Points returns a copy of the point positions in order.
func (pc *PointCloud) Points() []r3.Vector {
	out := make([]r3.Vector, len(pc.points))
	copy(out, pc.points)
	return out
}

// Iterate calls fn for each point in order until fn returns false.
func (pc *PointCloud) Iterate(fn func(i int, p r3.Vector, d Data) bool) {
	for i, p := range pc.points {
		if !fn(i, p, pc.data[i]) {
			return
		}
	}
}

// Map returns a new cloud in frameID whose i-th point is fn applied to the i-th point of pc.
// Data is carried over unchanged.
func (pc *PointCloud) Map(frameID string, fn func(p r3.Vector) r3.Vector) *PointCloud {
	out := NewWithPrealloc(frameID, pc.Size())
	for i, p := range pc.points {
		out.Append(fn(p), pc.data[i])
	}
	return out
}
