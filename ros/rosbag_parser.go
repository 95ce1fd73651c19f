// Package ros reads sensor logs recorded as ROS bags.
package ros

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/edaniels/gobag/rosbag"
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// ErrNoMessages is returned when a bag has no message on the requested topic.
var ErrNoMessages = errors.New("no messages for topic")

// Message is one message of a bag in the JSON form gobag renders it in.
type Message struct {
	Meta struct {
		Secs  int64 `json:"secs"`
		Nsecs int64 `json:"nsecs"`
	} `json:"meta"`
	Data json.RawMessage `json:"data"`
}

// ReadBag reads the contents of a rosbag into a gobag data structure.
func ReadBag(filename string) (*rosbag.RosBag, error) {
	//nolint:gosec
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open input file")
	}
	defer utils.UncheckedErrorFunc(f.Close)

	rb := rosbag.NewRosBag()
	if err := rb.Read(f); err != nil {
		return nil, errors.Wrapf(err, "unable to read ros bag %s", filename)
	}
	return rb, nil
}

// topicKey is the name gobag files a topic's messages under.
func topicKey(topic string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(topic, "/"), "/", "_"))
}

func sameTopic(a, b string) bool {
	return strings.TrimPrefix(a, "/") == strings.TrimPrefix(b, "/")
}

type lineReader interface {
	ReadBytes(delim byte) ([]byte, error)
}

func parseTopic(rb *rosbag.RosBag, topic string) (lineReader, error) {
	if err := rb.ParseTopicsToJSON(
		"",
		func(int64) bool { return true },
		func(t string) bool { return sameTopic(t, topic) },
		false,
	); err != nil {
		return nil, errors.Wrapf(err, "error while parsing bag to JSON")
	}
	msgs, ok := rb.TopicsAsJSON[topicKey(topic)]
	if !ok || msgs == nil {
		return nil, errors.Wrapf(ErrNoMessages, "%q", topic)
	}
	return msgs, nil
}

// AllMessagesForTopic returns all messages for a specific topic in the ros bag, in recording order.
func AllMessagesForTopic(rb *rosbag.RosBag, topic string) ([]Message, error) {
	msgs, err := parseTopic(rb, topic)
	if err != nil {
		return nil, err
	}
	var all []Message
	err = eachLine(msgs, func(line []byte) error {
		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			return errors.Wrapf(err, "decoding message on %q", topic)
		}
		all = append(all, msg)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, errors.Wrapf(ErrNoMessages, "%q", topic)
	}
	return all, nil
}

// LatestMessageOfType returns the last message recorded on topic, decoded into out.
func LatestMessageOfType(rb *rosbag.RosBag, topic string, out interface{}) (Message, error) {
	msgs, err := parseTopic(rb, topic)
	if err != nil {
		return Message{}, err
	}
	return latestMessage(msgs, topic, out)
}

func latestMessage(msgs lineReader, topic string, out interface{}) (Message, error) {
	var last []byte
	if err := eachLine(msgs, func(line []byte) error {
		last = line
		return nil
	}); err != nil {
		return Message{}, err
	}
	if last == nil {
		return Message{}, errors.Wrapf(ErrNoMessages, "%q", topic)
	}

	var msg Message
	if err := json.Unmarshal(last, &msg); err != nil {
		return Message{}, errors.Wrapf(err, "decoding message on %q", topic)
	}
	if out != nil {
		if err := json.Unmarshal(msg.Data, out); err != nil {
			return Message{}, errors.Wrapf(err, "decoding message data on %q", topic)
		}
	}
	return msg, nil
}

func eachLine(r lineReader, fn func([]byte) error) error {
	for {
		line, err := r.ReadBytes('\n')
		if trimmed := strings.TrimSpace(string(line)); trimmed != "" {
			if fnErr := fn([]byte(trimmed)); fnErr != nil {
				return fnErr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}
