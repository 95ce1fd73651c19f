package ros

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestTopicKey(t *testing.T) {
	test.That(t, topicKey("/camera/front/image_raw"), test.ShouldEqual, "camera_front_image_raw")
	test.That(t, topicKey("Velodyne_Points"), test.ShouldEqual, "velodyne_points")
	test.That(t, sameTopic("/points", "points"), test.ShouldBeTrue)
	test.That(t, sameTopic("/points", "/points2"), test.ShouldBeFalse)
}

func TestEachLine(t *testing.T) {
	buf := bytes.NewBufferString("{\"a\":1}\n\n  {\"a\":2}  \n{\"a\":3}")
	var lines []string
	err := eachLine(buf, func(line []byte) error {
		lines = append(lines, string(line))
		return nil
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, lines, test.ShouldResemble, []string{`{"a":1}`, `{"a":2}`, `{"a":3}`})

	stop := errors.New("stop")
	calls := 0
	err = eachLine(bytes.NewBufferString("1\n2\n3\n"), func([]byte) error {
		calls++
		return stop
	})
	test.That(t, err, test.ShouldEqual, stop)
	test.That(t, calls, test.ShouldEqual, 1)
}

func TestLatestMessage(t *testing.T) {
	buf := bytes.NewBufferString(
		`{"meta": {"secs":10,"nsecs":5}, "data": {"value": 1}}` + "\n" +
			`{"meta": {"secs":11,"nsecs":7}, "data": {"value": 2}}` + "\n",
	)
	var out struct {
		Value int `json:"value"`
	}
	msg, err := latestMessage(buf, "/topic", &out)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, msg.Meta.Secs, test.ShouldEqual, 11)
	test.That(t, msg.Meta.Nsecs, test.ShouldEqual, 7)
	test.That(t, out.Value, test.ShouldEqual, 2)

	_, err = latestMessage(bytes.NewBufferString(""), "/topic", &out)
	test.That(t, errors.Is(err, ErrNoMessages), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "/topic")

	_, err = latestMessage(bytes.NewBufferString("not json\n"), "/topic", &out)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = latestMessage(bytes.NewBufferString(`{"meta": {}, "data": {"value": "x"}}`), "/topic", &out)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "decoding message data")
}

func TestReadBagMissing(t *testing.T) {
	_, err := ReadBag("/does/not/exist.bag")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unable to open input file")
}
