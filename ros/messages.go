package ros

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"math"

	"github.com/edaniels/gobag/rosbag"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/painter/pointcloud"
	"go.viam.com/painter/rimage"
)

// PointField datatypes of sensor_msgs/PointField.
const (
	PointFieldInt8    = 1
	PointFieldUint8   = 2
	PointFieldInt16   = 3
	PointFieldUint16  = 4
	PointFieldInt32   = 5
	PointFieldUint32  = 6
	PointFieldFloat32 = 7
	PointFieldFloat64 = 8
)

// ByteArray is a uint8[] field. It decodes from either a base64 string or a list of numbers.
type ByteArray []byte

// UnmarshalJSON implements json.Unmarshaler.
func (b *ByteArray) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		decoded, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return err
		}
		*b = decoded
		return nil
	}
	var nums []uint8
	if err := json.Unmarshal(data, &nums); err != nil {
		return err
	}
	*b = nums
	return nil
}

// Header is a std_msgs/Header.
type Header struct {
	Seq   uint32 `json:"seq"`
	Stamp struct {
		Secs  int64 `json:"secs"`
		Nsecs int64 `json:"nsecs"`
	} `json:"stamp"`
	FrameID string `json:"frame_id"`
}

// PointField is a sensor_msgs/PointField.
type PointField struct {
	Name     string `json:"name"`
	Offset   int    `json:"offset"`
	Datatype int    `json:"datatype"`
	Count    int    `json:"count"`
}

// PointCloud2Message is a sensor_msgs/PointCloud2.
type PointCloud2Message struct {
	Header      Header       `json:"header"`
	Height      int          `json:"height"`
	Width       int          `json:"width"`
	Fields      []PointField `json:"fields"`
	IsBigEndian bool         `json:"is_bigendian"`
	PointStep   int          `json:"point_step"`
	RowStep     int          `json:"row_step"`
	Data        ByteArray    `json:"data"`
	IsDense     bool         `json:"is_dense"`
}

// ImageMessage is a sensor_msgs/Image.
type ImageMessage struct {
	Header      Header    `json:"header"`
	Height      int       `json:"height"`
	Width       int       `json:"width"`
	Encoding    string    `json:"encoding"`
	IsBigEndian uint8     `json:"is_bigendian"`
	Step        int       `json:"step"`
	Data        ByteArray `json:"data"`
}

func (m *PointCloud2Message) field(name string) (PointField, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return PointField{}, false
}

type fieldReader func(point []byte) float64

func (m *PointCloud2Message) reader(f PointField) (fieldReader, error) {
	var order binary.ByteOrder = binary.LittleEndian
	if m.IsBigEndian {
		order = binary.BigEndian
	}
	size := map[int]int{PointFieldFloat32: 4, PointFieldFloat64: 8}[f.Datatype]
	if size == 0 {
		return nil, errors.Errorf("field %q has datatype %d, expected FLOAT32 or FLOAT64", f.Name, f.Datatype)
	}
	if f.Offset < 0 || f.Offset+size > m.PointStep {
		return nil, errors.Errorf("field %q at offset %d does not fit a %d byte point", f.Name, f.Offset, m.PointStep)
	}
	off := f.Offset
	if size == 4 {
		return func(point []byte) float64 {
			return float64(math.Float32frombits(order.Uint32(point[off:])))
		}, nil
	}
	return func(point []byte) float64 {
		return math.Float64frombits(order.Uint64(point[off:]))
	}, nil
}

// ToPointCloud decodes the x, y and z fields of every point, in storage order, into a cloud in
// the header's frame. A packed rgb field, when present, colors the points.
func (m *PointCloud2Message) ToPointCloud() (*pointcloud.PointCloud, error) {
	readers := make([]fieldReader, 3)
	for i, name := range []string{"x", "y", "z"} {
		f, ok := m.field(name)
		if !ok {
			return nil, errors.Errorf("point cloud has no %q field", name)
		}
		r, err := m.reader(f)
		if err != nil {
			return nil, err
		}
		readers[i] = r
	}
	rgbField, hasRGB := m.field("rgb")
	if !hasRGB {
		rgbField, hasRGB = m.field("rgba")
	}
	if hasRGB && (rgbField.Offset < 0 || rgbField.Offset+4 > m.PointStep) {
		hasRGB = false
	}

	rowStep := m.RowStep
	if rowStep == 0 {
		rowStep = m.Width * m.PointStep
	}
	if m.Width < 0 || m.Height < 0 || m.PointStep <= 0 {
		return nil, errors.Errorf("invalid point cloud layout %dx%d with point step %d", m.Width, m.Height, m.PointStep)
	}
	if need := rowStep*(m.Height-1) + m.Width*m.PointStep; m.Width*m.Height > 0 && len(m.Data) < need {
		return nil, errors.Errorf("point cloud data has %d bytes, need %d", len(m.Data), need)
	}

	var order binary.ByteOrder = binary.LittleEndian
	if m.IsBigEndian {
		order = binary.BigEndian
	}
	cloud := pointcloud.NewWithPrealloc(m.Header.FrameID, m.Width*m.Height)
	for row := 0; row < m.Height; row++ {
		for col := 0; col < m.Width; col++ {
			start := row*rowStep + col*m.PointStep
			point := m.Data[start : start+m.PointStep]
			p := r3.Vector{X: readers[0](point), Y: readers[1](point), Z: readers[2](point)}
			var d pointcloud.Data
			if hasRGB {
				packed := order.Uint32(point[rgbField.Offset:])
				d = pointcloud.NewColoredDataRGB(uint8(packed>>16), uint8(packed>>8), uint8(packed))
			}
			cloud.Append(p, d)
		}
	}
	return cloud, nil
}

// ToImage decodes the pixels.
func (m *ImageMessage) ToImage() (*rimage.Image, error) {
	return rimage.DecodeRaw(m.Width, m.Height, m.Step, m.Encoding, m.Data)
}

// LatestPointCloud returns the last cloud recorded on topic.
func LatestPointCloud(rb *rosbag.RosBag, topic string) (*pointcloud.PointCloud, error) {
	var msg PointCloud2Message
	if _, err := LatestMessageOfType(rb, topic, &msg); err != nil {
		return nil, err
	}
	return msg.ToPointCloud()
}

// LatestImage returns the last image recorded on topic.
func LatestImage(rb *rosbag.RosBag, topic string) (*rimage.Image, error) {
	var msg ImageMessage
	if _, err := LatestMessageOfType(rb, topic, &msg); err != nil {
		return nil, err
	}
	img, err := msg.ToImage()
	if err != nil {
		return nil, errors.Wrapf(err, "image on %q", topic)
	}
	return img, nil
}

// PointCloudFromBag reads a bag file and returns the last cloud recorded on topic.
func PointCloudFromBag(filename, topic string) (*pointcloud.PointCloud, error) {
	rb, err := ReadBag(filename)
	if err != nil {
		return nil, err
	}
	return LatestPointCloud(rb, topic)
}

// ImageFromBag reads a bag file and returns the last image recorded on topic.
func ImageFromBag(filename, topic string) (*rimage.Image, error) {
	rb, err := ReadBag(filename)
	if err != nil {
		return nil, err
	}
	return LatestImage(rb, topic)
}
