package painter

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"google.golang.org/grpc/encoding"

	"go.viam.com/painter/pointcloud"
	"go.viam.com/painter/rimage"
)

// codecName is the gRPC content subtype the painter service speaks.
const codecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec carries the painter messages, which are plain Go structs, over gRPC.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return codecName
}

// wirePointStep is the size of one point on the wire: x, y, z as little-endian float64.
const wirePointStep = 3 * 8

// WirePointCloud is a cloud on the wire: packed little-endian float64 x, y, z triples, which
// carry NaN returns unchanged, and, for colored clouds, one r, g, b triple per point.
type WirePointCloud struct {
	FrameID string `json:"frame_id"`
	Points  []byte `json:"points"`
	Colors  []byte `json:"colors,omitempty"`
}

// WireImage is an uncompressed image on the wire, laid out as a sensor_msgs/Image.
type WireImage struct {
	Height   int    `json:"height"`
	Width    int    `json:"width"`
	Encoding string `json:"encoding"`
	Step     int    `json:"step"`
	Data     []byte `json:"data"`
}

// WireRequest is the Paint request message.
type WireRequest struct {
	Cloud       WirePointCloud `json:"input_cloud"`
	Front       WireImage      `json:"image_front"`
	Rear        WireImage      `json:"image_rear"`
	CameraFrame string         `json:"image_frame"`
}

// WireResponse is the Paint response message.
type WireResponse struct {
	RequestID string         `json:"request_id"`
	Cloud     WirePointCloud `json:"output_cloud"`
	Stats     Stats          `json:"stats"`
}

// CloudToWire flattens a cloud. Colors are sent when any point has one; uncolored points are
// sent black.
func CloudToWire(cloud *pointcloud.PointCloud) WirePointCloud {
	wire := WirePointCloud{FrameID: cloud.FrameID, Points: make([]byte, 0, wirePointStep*cloud.Size())}
	hasColor := cloud.MetaData().HasColor
	if hasColor {
		wire.Colors = make([]byte, 0, 3*cloud.Size())
	}
	cloud.Iterate(func(_ int, p r3.Vector, d pointcloud.Data) bool {
		for _, v := range [3]float64{p.X, p.Y, p.Z} {
			wire.Points = binary.LittleEndian.AppendUint64(wire.Points, math.Float64bits(v))
		}
		if hasColor {
			var r, g, b uint8
			if d != nil && d.HasColor() {
				r, g, b = d.RGB255()
			}
			wire.Colors = append(wire.Colors, r, g, b)
		}
		return true
	})
	return wire
}

// CloudFromWire rebuilds a cloud.
func CloudFromWire(wire WirePointCloud) (*pointcloud.PointCloud, error) {
	if len(wire.Points)%wirePointStep != 0 {
		return nil, errors.Errorf("cloud has %d point bytes, not a multiple of %d", len(wire.Points), wirePointStep)
	}
	n := len(wire.Points) / wirePointStep
	if wire.Colors != nil && len(wire.Colors) != 3*n {
		return nil, errors.Errorf("cloud has %d points but %d color bytes", n, len(wire.Colors))
	}
	cloud := pointcloud.NewWithPrealloc(wire.FrameID, n)
	for i := 0; i < n; i++ {
		raw := wire.Points[i*wirePointStep:]
		p := r3.Vector{
			X: math.Float64frombits(binary.LittleEndian.Uint64(raw[0:])),
			Y: math.Float64frombits(binary.LittleEndian.Uint64(raw[8:])),
			Z: math.Float64frombits(binary.LittleEndian.Uint64(raw[16:])),
		}
		var d pointcloud.Data
		if wire.Colors != nil {
			d = pointcloud.NewColoredDataRGB(wire.Colors[3*i], wire.Colors[3*i+1], wire.Colors[3*i+2])
		}
		cloud.Append(p, d)
	}
	return cloud, nil
}

// ImageToWire packs an image as rgb8.
func ImageToWire(img *rimage.Image) (WireImage, error) {
	data, err := rimage.EncodeRaw(img, rimage.EncodingRGB8)
	if err != nil {
		return WireImage{}, err
	}
	return WireImage{
		Height:   img.Height(),
		Width:    img.Width(),
		Encoding: rimage.EncodingRGB8,
		Step:     3 * img.Width(),
		Data:     data,
	}, nil
}

// ImageFromWire decodes an image. Failures wrap ErrImageDecode.
func ImageFromWire(wire WireImage) (*rimage.Image, error) {
	img, err := rimage.DecodeRaw(wire.Width, wire.Height, wire.Step, wire.Encoding, wire.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImageDecode, err)
	}
	return img, nil
}

// RequestToWire converts a request to its message.
func RequestToWire(req Request) (*WireRequest, error) {
	if req.Cloud == nil {
		return nil, errors.Wrap(ErrInvalidRequest, "no cloud")
	}
	if req.Front == nil || req.Rear == nil {
		return nil, errors.Wrap(ErrInvalidRequest, "both images are required")
	}
	front, err := ImageToWire(req.Front)
	if err != nil {
		return nil, errors.Wrap(err, "front image")
	}
	rear, err := ImageToWire(req.Rear)
	if err != nil {
		return nil, errors.Wrap(err, "rear image")
	}
	return &WireRequest{
		Cloud:       CloudToWire(req.Cloud),
		Front:       front,
		Rear:        rear,
		CameraFrame: req.CameraFrame,
	}, nil
}

// RequestFromWire decodes a request message.
func RequestFromWire(wire *WireRequest) (Request, error) {
	cloud, err := CloudFromWire(wire.Cloud)
	if err != nil {
		return Request{}, errors.Wrap(ErrInvalidRequest, err.Error())
	}
	front, err := ImageFromWire(wire.Front)
	if err != nil {
		return Request{}, errors.Wrap(err, "front image")
	}
	rear, err := ImageFromWire(wire.Rear)
	if err != nil {
		return Request{}, errors.Wrap(err, "rear image")
	}
	return Request{Cloud: cloud, Front: front, Rear: rear, CameraFrame: wire.CameraFrame}, nil
}
