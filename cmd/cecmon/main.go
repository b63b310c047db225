package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"github.com/golang/protobuf/proto"

	"github.com/robotalks/cec.go/pkg/cec"
	"github.com/robotalks/cec.go/pkg/ec"
	"github.com/robotalks/cec.go/pkg/msgs"
	"github.com/robotalks/cec.go/pkg/mqtt"
)

//go-build: CGO_ENABLED=0

var (
	mqttURL = "mqtt://localhost:1883/cec/"
)

func init() {
	if val := os.Getenv("CEC_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
}

func decode(topic string, payload []byte) (proto.Message, string, error) {
	switch {
	case strings.HasSuffix(topic, mqtt.TopicCmd):
		msg, err := msgs.DecodeRequest(payload)
		if err != nil {
			return nil, "", err
		}
		return msg, msg.HostCommand().String(), nil
	case strings.HasSuffix(topic, mqtt.TopicReply):
		msg, err := msgs.DecodeResponse(payload)
		if err != nil {
			return nil, "", err
		}
		return msg, msg.HostResult().String(), nil
	case strings.HasSuffix(topic, mqtt.TopicEvent):
		msg, err := msgs.DecodeEvent(payload)
		if err != nil {
			return nil, "", err
		}
		if msg.EventType() == ec.EventCEC {
			return msg, cec.EventsFromPayload(msg.Data).String(), nil
		}
		return msg, "", nil
	}
	return nil, "", nil
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}

	q.Sub("#", mqtt.Handler(func(topic string, payload []byte) {
		if strings.HasSuffix(topic, mqtt.TopicMeta) {
			log.Printf("%s: %s", topic, string(payload))
			return
		}
		msg, desc, err := decode(topic, payload)
		if err != nil {
			log.Printf("%s: bad message: %v", topic, err)
			return
		}
		if msg == nil {
			log.Printf("%s: % x", topic, payload)
			return
		}
		log.Printf("%s: [%s] %s", topic, desc, proto.CompactTextString(msg))
	}))
	if token := q.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalln(token.Error())
	}
	<-(chan struct{})(nil)
}
