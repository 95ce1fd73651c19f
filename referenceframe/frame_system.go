// Package referenceframe resolves rigid transforms between named coordinate frames and applies
// them to point clouds.
package referenceframe

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/painter/logging"
	"go.viam.com/painter/spatialmath"
)

// World is the string "world", but made into an exported constant.
const World = "world"

// TransformResolver looks up the pose that maps points expressed in src into dst.
type TransformResolver interface {
	// LookupTransform blocks until the relation between src and dst is known or ctx is done.
	// The zero time asks for the latest known relation. Failures wrap ErrTransformUnavailable.
	LookupTransform(ctx context.Context, src, dst string, at time.Time) (spatialmath.Pose, error)
}

// TransformResolverFunc adapts a function to a TransformResolver.
type TransformResolverFunc func(ctx context.Context, src, dst string, at time.Time) (spatialmath.Pose, error)

// LookupTransform calls f.
func (f TransformResolverFunc) LookupTransform(ctx context.Context, src, dst string, at time.Time) (spatialmath.Pose, error) {
	return f(ctx, src, dst, at)
}

type link struct {
	parent string
	// pose of the frame expressed in its parent
	pose spatialmath.Pose
}

// Buffer is a tree of frames, each attached to a parent by a static pose, which may be edited
// while lookups are in flight. A frame that is only ever named as a parent is a root; World is
// always known. Lookups between frames that do not yet share a root wait for the tree to change.
type Buffer struct {
	mu      sync.Mutex
	links   map[string]link
	changed chan struct{}
	logger  logging.Logger
}

// NewBuffer returns an empty frame buffer.
func NewBuffer(logger logging.Logger) *Buffer {
	return &Buffer{
		links:   map[string]link{},
		changed: make(chan struct{}),
		logger:  logger,
	}
}

// NewBufferFromConfig returns a buffer holding every configured frame.
func NewBufferFromConfig(frames []LinkConfig, logger logging.Logger) (*Buffer, error) {
	buf := NewBuffer(logger)
	for _, f := range frames {
		if err := buf.SetTransform(f.Name, f.Parent, f.Pose()); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// SetTransform attaches name to parent with the pose of name expressed in parent, replacing any
// previous attachment, and wakes up waiting lookups.
func (b *Buffer) SetTransform(name, parent string, pose spatialmath.Pose) error {
	if name == "" || parent == "" {
		return errors.New("frame and parent names must be non-empty")
	}
	if name == World {
		return errors.Errorf("cannot attach %q to a parent", World)
	}
	if pose == nil {
		pose = spatialmath.NewZeroPose()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := checkAcyclic(b.links, name, parent); err != nil {
		return err
	}
	b.links[name] = link{parent: parent, pose: pose}
	b.broadcastLocked()
	if b.logger != nil {
		b.logger.Debugw("frame updated", "frame", name, "parent", parent)
	}
	return nil
}

// RemoveFrame detaches name from its parent. Its children stay attached to it.
func (b *Buffer) RemoveFrame(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.links[name]; !ok {
		return
	}
	delete(b.links, name)
	b.broadcastLocked()
}

// ApplyConfig replaces every frame with the configured ones in a single edit. Frames missing from
// frames are removed. On error the buffer is left unchanged.
func (b *Buffer) ApplyConfig(frames []LinkConfig) error {
	links := make(map[string]link, len(frames))
	for i := range frames {
		f := &frames[i]
		if err := f.Validate(fmt.Sprintf("frames.%d", i)); err != nil {
			return err
		}
		if f.Name == World {
			return errors.Errorf("cannot attach %q to a parent", World)
		}
		if _, ok := links[f.Name]; ok {
			return errors.Errorf("frame %q is configured more than once", f.Name)
		}
		links[f.Name] = link{parent: f.Parent, pose: f.Pose()}
	}
	for name, l := range links {
		if err := checkAcyclic(links, name, l.parent); err != nil {
			return err
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.links = links
	b.broadcastLocked()
	if b.logger != nil {
		b.logger.Infow("frames replaced", "frames", len(links))
	}
	return nil
}

// checkAcyclic reports whether attaching name to parent within links closes a loop.
func checkAcyclic(links map[string]link, name, parent string) error {
	seen := map[string]struct{}{}
	for ancestor := parent; ; {
		if ancestor == name {
			return NewCycleError(name, parent)
		}
		if _, ok := seen[ancestor]; ok {
			return NewCycleError(name, parent)
		}
		seen[ancestor] = struct{}{}
		l, ok := links[ancestor]
		if !ok {
			return nil
		}
		ancestor = l.parent
	}
}

func (b *Buffer) broadcastLocked() {
	close(b.changed)
	b.changed = make(chan struct{})
}

// FrameNames returns the names of all known frames, sorted.
func (b *Buffer) FrameNames() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	parents := lo.MapToSlice(b.links, func(_ string, l link) string { return l.parent })
	names := lo.Uniq(append(append(lo.Keys(b.links), parents...), World))
	sort.Strings(names)
	return names
}

// String prints a table of every attached frame with its parent and pose, sorted by name.
func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := lo.Keys(b.links)
	sort.Strings(names)

	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Name", "Parent", "Translation", "Orientation"})
	for i, name := range names {
		l := b.links[name]
		tra := l.pose.Point()
		ori := l.pose.Orientation().EulerAngles()
		t.AppendRow(table.Row{
			i + 1,
			name,
			l.parent,
			fmt.Sprintf("X:%.3f, Y:%.3f, Z:%.3f", tra.X, tra.Y, tra.Z),
			fmt.Sprintf(
				"Roll:%.2f, Pitch:%.2f, Yaw:%.2f",
				spatialmath.Degrees(ori.Roll),
				spatialmath.Degrees(ori.Pitch),
				spatialmath.Degrees(ori.Yaw),
			),
		})
	}
	return t.Render()
}

// TracebackFrame returns the chain of frames from name up to its root, both included.
func (b *Buffer) TracebackFrame(name string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	chain := []string{name}
	for {
		l, ok := b.links[name]
		if !ok {
			return chain
		}
		name = l.parent
		chain = append(chain, name)
	}
}

// LookupTransform implements TransformResolver. Edits are applied as they arrive and the buffer
// keeps no history, so at is ignored.
func (b *Buffer) LookupTransform(ctx context.Context, src, dst string, at time.Time) (spatialmath.Pose, error) {
	for {
		b.mu.Lock()
		pose, ok := b.transformLocked(src, dst)
		changed := b.changed
		b.mu.Unlock()
		if ok {
			return pose, nil
		}

		select {
		case <-ctx.Done():
			return nil, newUnavailableError(src, dst, ctx.Err())
		case <-changed:
		}
	}
}

func (b *Buffer) transformLocked(src, dst string) (spatialmath.Pose, bool) {
	if src == dst {
		return spatialmath.NewZeroPose(), true
	}
	srcRoot, rootFromSrc := b.poseInRootLocked(src)
	dstRoot, rootFromDst := b.poseInRootLocked(dst)
	if srcRoot != dstRoot {
		return nil, false
	}
	// dst<-src = inverse(root<-dst) * root<-src
	return spatialmath.PoseBetween(rootFromDst, rootFromSrc), true
}

func (b *Buffer) poseInRootLocked(name string) (string, spatialmath.Pose) {
	pose := spatialmath.NewZeroPose()
	for {
		l, ok := b.links[name]
		if !ok {
			return name, pose
		}
		pose = spatialmath.Compose(l.pose, pose)
		name = l.parent
	}
}
